package blp

import "testing"

type fakeWriter struct {
	written []byte
}

func (f *fakeWriter) Write(buf []byte) (int, error) {
	f.written = append(f.written, buf...)
	return len(buf), nil
}

func TestPromptDetectFiresOnBannerSuffix(t *testing.T) {
	w := &fakeWriter{}
	p := NewParser(w)
	p.Enable()

	called := false
	p.RegisterPromptDetectCallback(func() { called = true })

	p.Decode([]byte("Gecko Bootloader v1.0.0\r\nBL > "))
	if !called {
		t.Fatalf("expected prompt detect callback to fire")
	}
	if !p.PromptDetected() {
		t.Fatalf("expected PromptDetected() true")
	}
}

func TestPromptDetectDisabledParserIgnoresBytes(t *testing.T) {
	w := &fakeWriter{}
	p := NewParser(w)
	called := false
	p.RegisterPromptDetectCallback(func() { called = true })

	p.Decode([]byte("BL > "))
	if called {
		t.Fatalf("disabled parser must not scan bytes")
	}
}

func TestSelectModeRunWritesConfiguredKey(t *testing.T) {
	w := &fakeWriter{}
	p := NewParser(w, WithMenuKeys('2', '1'))
	if err := p.SelectModeRun(); err != nil {
		t.Fatalf("SelectModeRun: %v", err)
	}
	if len(w.written) != 1 || w.written[0] != '2' {
		t.Fatalf("expected run key written, got %v", w.written)
	}
}

func TestSelectModeUpgradeFwWaitsForXmodemHandshake(t *testing.T) {
	w := &fakeWriter{}
	p := NewParser(w)
	p.Enable()

	ready := false
	if err := p.SelectModeUpgradeFw(func() { ready = true }); err != nil {
		t.Fatalf("SelectModeUpgradeFw: %v", err)
	}
	if len(w.written) != 1 || w.written[0] != p.cfg.upgradeKey {
		t.Fatalf("expected upgrade key written")
	}

	p.Decode([]byte("some chatter"))
	if ready {
		t.Fatalf("ready fired before XMODEM handshake byte")
	}
	p.Decode([]byte{'C'})
	if !ready {
		t.Fatalf("expected ready after XMODEM handshake byte 'C'")
	}
}

func TestCustomBannerSuffix(t *testing.T) {
	w := &fakeWriter{}
	p := NewParser(w, WithBannerSuffix("MENU> "))
	p.Enable()
	called := false
	p.RegisterPromptDetectCallback(func() { called = true })

	p.Decode([]byte("boot MENU> "))
	if !called {
		t.Fatalf("expected custom banner suffix to be detected")
	}
}
