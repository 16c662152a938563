package browser

import (
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// LaunchOptions controla o navegador usado pelo replay.
type LaunchOptions struct {
	Headless bool
	// UserDataDir mantém cookies entre execuções; vazio usa um perfil temporário.
	UserDataDir string
	// MonitorAddr habilita o monitor do rod (ex: ":9222") para debug remoto.
	MonitorAddr string
}

// Launch inicia o Chromium local e conecta o rod.
func Launch(opts LaunchOptions) (*rod.Browser, error) {
	path, _ := launcher.LookPath()

	l := launcher.New().
		Bin(path).
		Leakless(false).
		Set("disable-gpu"). // Evita problemas de GPU em containers
		Set("no-sandbox")   // Necessário em containers Linux
	if opts.UserDataDir != "" {
		l = l.UserDataDir(opts.UserDataDir)
	}
	if opts.Headless {
		l = l.Set("headless", "new")
	} else {
		l = l.Headless(false).Devtools(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("erro ao iniciar browser: %w", err)
	}
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("erro conectando ao browser: %w", err)
	}
	if opts.MonitorAddr != "" {
		go browser.ServeMonitor(opts.MonitorAddr)
	}
	return browser, nil
}

// NewPage abre uma página stealth e navega até url.
func NewPage(b *rod.Browser, url string, timeout time.Duration) (*rod.Page, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("erro criando pagina stealth: %w", err)
	}
	if url == "" {
		return page, nil
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if err := page.Timeout(timeout).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("erro navegando para %s: %w", url, err)
	}
	if err := page.Timeout(timeout).WaitLoad(); err != nil {
		page.Close()
		return nil, fmt.Errorf("erro aguardando carregamento: %w", err)
	}
	return page, nil
}
