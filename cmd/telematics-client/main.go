// Command telematics-client runs the embedded telematics core: it
// drains the durable event queue to a DMTP fleet-management server,
// derives motion events from a GPS feed, and supervises connectivity
// end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/intelcon-group/telematics-core/internal/gps"
	"github.com/intelcon-group/telematics-core/internal/property"
	"github.com/intelcon-group/telematics-core/pkg/dmtp"
)

const version = "1.0.0"

// exit codes per the client's external interface contract.
const (
	exitOK         = 0
	exitFatalConfig = 1
	exitArgError   = 3
)

var (
	flagHelp    = flag.Bool("help", false, "print usage and exit")
	flagVersion = flag.Bool("version", false, "print version and exit")
	flagDebug   = flag.Bool("debug", false, "enable debug logging")
	flagSilent  = flag.Bool("silent", false, "suppress all logging")
	flagLog     = flag.String("log", "", "log sink type (stderr, file:<path>)")
	flagPFile   = flag.String("pfile", "", "property cache base path")
	flagPP      = flag.Bool("pp", false, "print the property store and exit")
	flagGPS     = flag.String("gps", "", "GPS serial port, optionally \"<port>,<bps>\"")
	flagTCP     = flag.String("tcp", "", "DMTP server over TCP, \"<host>[,<port>]\"")
	flagUDP     = flag.String("udp", "", "DMTP server over UDP, \"<host>[,<port>]\"")
	flagUpdateDir  = flag.String("update-dir", "", "extract server-pushed updates under this directory (disabled if empty)")
	flagLogUpload  = flag.String("log-upload", "", "HTTPS endpoint to PUT the property cache log to on request")
	flagLogUploadAuth = flag.String("log-upload-auth", "", "\"<user>:<pass>\" for -log-upload's HTTP Basic auth")
)

// sugaredPrintf adapts *zap.SugaredLogger to the Printf(format, ...)
// surface every internal package's Logger interface expects.
type sugaredPrintf struct{ s *zap.SugaredLogger }

func (l sugaredPrintf) Printf(format string, args ...interface{}) { l.s.Infof(format, args...) }

func main() {
	flag.Parse()

	if *flagHelp {
		flag.Usage()
		os.Exit(exitOK)
	}
	if *flagVersion {
		fmt.Println("telematics-client", version)
		os.Exit(exitOK)
	}

	logger, err := buildLogger(*flagDebug, *flagSilent, *flagLog)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telematics-client: logger setup:", err)
		os.Exit(exitFatalConfig)
	}
	defer logger.Sync()
	sugared := sugaredPrintf{logger.Sugar()}

	if *flagPP {
		store := property.NewStore()
		property.RegisterDefaults(store)
		if *flagPFile != "" {
			if err := store.Load(*flagPFile); err != nil {
				fmt.Fprintln(os.Stderr, "telematics-client: load property file:", err)
				os.Exit(exitFatalConfig)
			}
		}
		printProperties(store)
		os.Exit(exitOK)
	}

	opts, err := buildOptions(sugared)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telematics-client: argument error:", err)
		os.Exit(exitArgError)
	}

	client, err := dmtp.New(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telematics-client: fatal:", err)
		os.Exit(exitFatalConfig)
	}

	if *flagPFile != "" {
		if err := client.Properties().Load(*flagPFile); err != nil {
			sugared.Printf("telematics-client: load property file: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		sugared.Printf("telematics-client: shutdown signal received")
		client.Shutdown()
		cancel()
	}()

	if err := client.Run(ctx); err != nil {
		sugared.Printf("telematics-client: %v", err)
		if *flagPFile != "" {
			client.Properties().Save(*flagPFile)
		}
		os.Exit(exitFatalConfig)
	}

	if *flagPFile != "" {
		client.Properties().Save(*flagPFile)
	}
}

func buildLogger(debug, silent bool, sink string) (*zap.Logger, error) {
	if silent {
		return zap.NewNop(), nil
	}

	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	switch {
	case sink == "" || sink == "stderr":
		cfg.OutputPaths = []string{"stderr"}
	case strings.HasPrefix(sink, "file:"):
		cfg.OutputPaths = []string{strings.TrimPrefix(sink, "file:")}
	default:
		return nil, fmt.Errorf("unrecognized -log sink %q", sink)
	}

	return cfg.Build()
}

func printProperties(store *property.Store) {
	store.Each(func(key uint16, name string, v property.Value) {
		switch v.Kind {
		case property.KindU32:
			fmt.Printf("0x%04X %-24s = %d\n", key, name, v.U32)
		case property.KindI32:
			fmt.Printf("0x%04X %-24s = %d\n", key, name, v.I32)
		case property.KindF64:
			fmt.Printf("0x%04X %-24s = %g\n", key, name, v.F64)
		case property.KindBytes:
			fmt.Printf("0x%04X %-24s = %q\n", key, name, v.Bytes)
		default:
			fmt.Printf("0x%04X %-24s = (array, %d elements)\n", key, name, len(v.Array))
		}
	})
}

// buildOptions assembles dmtp.Options from the CLI flags. It reports an
// argument error if -tcp/-udp are both given, or either names a host
// with a non-numeric port.
func buildOptions(logger sugaredPrintf) ([]dmtp.Option, error) {
	opts := []dmtp.Option{dmtp.WithLogger(logger)}

	if *flagTCP != "" && *flagUDP != "" {
		return nil, fmt.Errorf("only one of -tcp or -udp may be given")
	}

	switch {
	case *flagTCP != "":
		addr, err := hostPort(*flagTCP, 8090)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dmtp.WithServers(addr, addr), dmtp.WithTransport("tcp"))
	case *flagUDP != "":
		addr, err := hostPort(*flagUDP, 8090)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dmtp.WithServers(addr, addr), dmtp.WithTransport("udp"))
	}

	if *flagGPS != "" {
		port, bps, err := portBaud(*flagGPS, 4800)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dmtp.WithGPSSource(gps.NewSerialSource(port, bps), defaultMotionConfig()))
	}

	if *flagUpdateDir != "" {
		opts = append(opts, dmtp.WithUpdate(*flagUpdateDir))
	}

	if *flagLogUpload != "" {
		user, pass, _ := strings.Cut(*flagLogUploadAuth, ":")
		opts = append(opts, dmtp.WithLogUpload(*flagLogUpload, user, pass))
	}

	return opts, nil
}

// hostPort parses "<host>[,<port>]" into a "host:port" pair.
func hostPort(spec string, defaultPort int) (string, error) {
	host, portStr, found := strings.Cut(spec, ",")
	port := defaultPort
	if found {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", fmt.Errorf("invalid port %q: %w", portStr, err)
		}
		port = p
	}
	return fmt.Sprintf("%s:%d", host, port), nil
}

// portBaud parses "<port>[,<bps>]" for -gps.
func portBaud(spec string, defaultBaud uint) (string, uint, error) {
	port, bpsStr, found := strings.Cut(spec, ",")
	baud := defaultBaud
	if found {
		b, err := strconv.ParseUint(bpsStr, 10, 32)
		if err != nil {
			return "", 0, fmt.Errorf("invalid baud rate %q: %w", bpsStr, err)
		}
		baud = uint(b)
	}
	return port, baud, nil
}

func defaultMotionConfig() gps.MotionConfig {
	return gps.MotionConfig{
		StartBySpeed:     true,
		StartSpeed:       3.0, // m/s, roughly 10.8 km/h
		StopSeconds:      180 * time.Second,
		ExcessSpeed:      30.0,
		InMotionInterval: 60 * time.Second,
		DormantInterval:  3600 * time.Second,
		DormantCount:     24,
		GPSLostTolerance: 3,
	}
}
