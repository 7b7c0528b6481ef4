package property

import "testing"

func TestSetAndGet(t *testing.T) {
	s := NewStore()
	s.Register(0x01, "TEST_U32", KindU32, false, true, U32Value(7))

	v, ok := s.Get(0x01)
	if !ok || v.U32 != 7 {
		t.Fatalf("got %+v ok=%v, want U32=7", v, ok)
	}

	if err := s.Set(0x01, U32Value(42)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ = s.Get(0x01)
	if v.U32 != 42 {
		t.Errorf("got %d, want 42", v.U32)
	}
	if !s.Dirty() {
		t.Error("expected store to be dirty after a save-policy property changes")
	}
}

func TestSetRejectsReadOnly(t *testing.T) {
	s := NewStore()
	s.Register(0x02, "RO", KindU32, true, false, U32Value(1))

	if err := s.Set(0x02, U32Value(2)); err == nil {
		t.Fatal("expected an error setting a read-only property")
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	s := NewStore()
	if err := s.Set(0xFFFF, U32Value(1)); err == nil {
		t.Fatal("expected an error setting an unregistered key")
	}
}

func TestSubscribeFiresOnSet(t *testing.T) {
	s := NewStore()
	s.Register(0x03, "NOTIFY", KindU32, false, false, U32Value(0))

	var gotOld, gotNew uint32
	called := false
	s.Subscribe(0x03, func(key uint16, old, new Value) {
		called = true
		gotOld = old.U32
		gotNew = new.U32
	})

	s.Set(0x03, U32Value(99))
	if !called {
		t.Fatal("expected subscriber to fire")
	}
	if gotOld != 0 || gotNew != 99 {
		t.Errorf("got old=%d new=%d, want old=0 new=99", gotOld, gotNew)
	}
}

func TestRegisterDefaultsPopulatesEssentialKeys(t *testing.T) {
	s := NewStore()
	RegisterDefaults(s)

	for _, key := range []uint16{CfgGPSPort, CommHost, MotionStart, StateProtocol} {
		if _, ok := s.Get(key); !ok {
			t.Errorf("expected key 0x%04X to be registered", key)
		}
	}
}
