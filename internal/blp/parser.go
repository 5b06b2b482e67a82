// Package blp implements the Bootloader Prompt Parser (C2): the decoder
// attached to the incoming byte stream while the adapter is in one of
// the bootloader modes instead of normal EZSP operation. It watches raw
// bytes for the bootloader's menu banner and the XMODEM handshake byte,
// and can drive the menu by writing the configured selection keys.
//
// Parser is not safe for concurrent use; see internal/ash for the
// single-goroutine contract shared by this layer.
package blp

import "bytes"

// Writer is the minimal UART write surface the parser needs to send
// menu key presses.
type Writer interface {
	Write(buf []byte) (int, error)
}

// PromptDetectCallback is invoked once the bootloader banner has been
// recognized in the incoming stream.
type PromptDetectCallback func()

// config holds the parser's tunables. Different bootloader firmware
// generations use different banner text and menu key bindings, so both
// are supplied as functional options rather than hard-coded.
type config struct {
	bannerSuffix []byte
	runKey       byte
	upgradeKey   byte
}

func defaultConfig() config {
	return config{
		bannerSuffix: []byte("BL > "),
		runKey:       '1',
		upgradeKey:   '2',
	}
}

// Option configures a Parser at construction time.
type Option func(*config)

// WithBannerSuffix overrides the literal suffix the parser scans for to
// recognize the bootloader menu prompt.
func WithBannerSuffix(suffix string) Option {
	return func(c *config) { c.bannerSuffix = []byte(suffix) }
}

// WithMenuKeys overrides the single-byte menu selections sent to choose
// "run the application" and "upgrade firmware" respectively.
func WithMenuKeys(run, upgrade byte) Option {
	return func(c *config) { c.runKey, c.upgradeKey = run, upgrade }
}

// Parser scans raw bytes for the bootloader menu banner and the XMODEM
// handshake byte 'C', and can issue menu selections.
type Parser struct {
	cfg config
	w   Writer

	enabled bool
	scanBuf []byte

	promptDetected bool
	onPrompt       []PromptDetectCallback

	awaitingXmodem bool
	onReady        func()
}

// NewParser returns a disabled Parser writing menu selections to w.
func NewParser(w Writer, opts ...Option) *Parser {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Parser{cfg: cfg, w: w}
}

// Enable arms the parser to scan incoming bytes. Called by the dongle
// dispatcher when it switches the adapter-mode decoder over to BLP.
func (p *Parser) Enable() {
	p.enabled = true
}

// Disable stops scanning and clears any partial banner match.
func (p *Parser) Disable() {
	p.enabled = false
	p.Reset()
}

// Reset clears scan and handshake state without changing Enable/Disable.
func (p *Parser) Reset() {
	p.scanBuf = p.scanBuf[:0]
	p.promptDetected = false
	p.awaitingXmodem = false
}

// RegisterPromptDetectCallback adds a callback fired the next time the
// bootloader banner is recognized. After a recognition, further banners
// fire no callbacks until Reset (or Disable) is called.
func (p *Parser) RegisterPromptDetectCallback(cb PromptDetectCallback) {
	p.onPrompt = append(p.onPrompt, cb)
}

// Decode feeds raw bytes read off the wire while BLP is the active
// decoder. It is a no-op when the parser is disabled.
func (p *Parser) Decode(raw []byte) {
	if !p.enabled {
		return
	}
	for _, b := range raw {
		if p.awaitingXmodem {
			if b == 'C' {
				p.awaitingXmodem = false
				if p.onReady != nil {
					p.onReady()
				}
			}
			continue
		}
		p.scanBuf = append(p.scanBuf, b)
		if len(p.scanBuf) > len(p.cfg.bannerSuffix) {
			p.scanBuf = p.scanBuf[len(p.scanBuf)-len(p.cfg.bannerSuffix):]
		}
		if !p.promptDetected && bytes.Equal(p.scanBuf, p.cfg.bannerSuffix) {
			p.promptDetected = true
			for _, cb := range p.onPrompt {
				cb()
			}
		}
	}
}

// SelectModeRun writes the menu key that exits the bootloader back into
// the EZSP NCP application.
func (p *Parser) SelectModeRun() error {
	_, err := p.w.Write([]byte{p.cfg.runKey})
	return err
}

// SelectModeUpgradeFw writes the menu key that begins a firmware
// upgrade and arms a watch for the XMODEM 'C' handshake byte; ready is
// invoked once the bootloader signals it is waiting for the transfer to
// start.
func (p *Parser) SelectModeUpgradeFw(ready func()) error {
	p.awaitingXmodem = true
	p.onReady = ready
	_, err := p.w.Write([]byte{p.cfg.upgradeKey})
	return err
}

// PromptDetected reports whether the banner has been seen since the
// last Reset.
func (p *Parser) PromptDetected() bool {
	return p.promptDetected
}
