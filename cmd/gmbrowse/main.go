/*
Copyright 2026 The gemlib Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command gmbrowse is an interactive terminal Gemini browser. It drives
// its single in-flight request through a cooperative.Loop so that a
// fetch in progress and a TUI redraw never race over shared model state.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dimkr/gemlib/certinfo"
	"github.com/dimkr/gemlib/client"
	"github.com/dimkr/gemlib/cooperative"
	"github.com/dimkr/gemlib/tlsconfig"
	"github.com/dimkr/gemlib/tofu"
)

var (
	clientCert = flag.String("cert", "", "Client TLS certificate, for capability URLs that require one")
	clientKey  = flag.String("key", "", "Client TLS key")
	tofuPath   = flag.String("tofudb", "", "sqlite database recording known host fingerprints; empty disables TOFU tracking")
	logLevel   = flag.Int("loglevel", int(slog.LevelWarn), "Logging verbosity")
)

var (
	statusBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flag]... [gemini://host/path]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(*logLevel)})))

	var cert *tls.Certificate
	if *clientCert != "" {
		loaded, err := tls.LoadX509KeyPair(*clientCert, *clientKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gmbrowse: failed to load client certificate: %v\n", err)
			os.Exit(1)
		}
		cert = &loaded
	}

	tlsCfg, err := tlsconfig.NewClientConfig(cert)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gmbrowse: failed to build TLS configuration: %v\n", err)
		os.Exit(1)
	}

	var store *tofu.Store
	if *tofuPath != "" {
		store, err = tofu.Open(context.Background(), *tofuPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gmbrowse: failed to open TOFU database: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	m := newModel(&client.Client{TLSConfig: tlsCfg}, store)
	if flag.NArg() == 1 {
		m.pending = flag.Arg(0)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gmbrowse: %v\n", err)
		os.Exit(1)
	}
}

type fetchedMsg struct {
	url string
	res cooperative.FetchResult
}

type model struct {
	loop   *cooperative.Loop
	client *client.Client
	store  *tofu.Store

	vp    viewport.Model
	input textinput.Model
	spin  spinner.Model

	loading bool
	pending string // URL to fetch once the window size is known
	current string
	history []string
	links   []string
	status  string
	warning string
	err     error

	width, height int
}

func newModel(c *client.Client, store *tofu.Store) model {
	ti := textinput.New()
	ti.Placeholder = "gemini://..."
	ti.Prompt = "go> "

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		loop:   cooperative.NewLoop(),
		client: c,
		store:  store,
		input:  ti,
		spin:   sp,
	}
}

func (m model) Init() tea.Cmd {
	return m.spin.Tick
}

func fetchCmd(m model, url string) tea.Cmd {
	return func() tea.Msg {
		done := make(chan cooperative.FetchResult, 1)
		cooperative.Fetch(m.loop, m.client, context.Background(), url, func(r cooperative.FetchResult) {
			done <- r
		})
		return fetchedMsg{url: url, res: <-done}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.vp = viewport.New(msg.Width, msg.Height-3)
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		if m.pending != "" {
			url := m.pending
			m.pending = ""
			m.loading = true
			return m, fetchCmd(m, url)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case fetchedMsg:
		m.loading = false
		return m.applyFetch(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m model) applyFetch(msg fetchedMsg) (tea.Model, tea.Cmd) {
	m.warning = ""
	m.err = nil

	if msg.res.Err != nil {
		m.err = msg.res.Err
		m.status = msg.url
		return m, nil
	}

	resp := msg.res.Response
	defer resp.Close()

	if resp.Certificate.HasCertificate() {
		host := resp.URL.Authority()
		if m.store != nil {
			if err := m.store.Verify(context.Background(), host, resp.Certificate.Fingerprint()); err != nil {
				m.warning = fmt.Sprintf("TOFU: %v", err)
			}
		} else if resp.Certificate.Flags&certinfo.FlagNotTrusted != 0 {
			m.warning = "server certificate is not chain-trusted (self-signed or unknown CA)"
		}
	}

	if !resp.Status.IsSuccess() {
		m.status = fmt.Sprintf("%s — %d %s", msg.url, resp.Status.Code(), resp.Meta)
		m.links = nil
		m.vp.SetContent(resp.Status.String() + "\n" + resp.Meta)
		return m, nil
	}

	body, err := io.ReadAll(resp.Body())
	if err != nil {
		m.err = err
		return m, nil
	}

	if m.current != "" {
		m.history = append(m.history, m.current)
	}
	m.current = msg.url

	lines := renderGemtext(string(body))
	m.links = linkTargets(lines)

	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = l.text
	}
	m.vp.SetContent(strings.Join(rendered, "\n"))
	m.vp.GotoTop()
	m.status = msg.url

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.input.Focused() {
		switch msg.String() {
		case "enter":
			url := strings.TrimSpace(m.input.Value())
			m.input.Blur()
			m.input.SetValue("")
			if url == "" {
				return m, nil
			}
			m.loading = true
			return m, fetchCmd(m, url)

		case "esc":
			m.input.Blur()
			m.input.SetValue("")
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.loop.Stop()
		return m, tea.Quit

	case "/":
		m.input.Focus()
		return m, textinput.Blink

	case "b":
		if len(m.history) > 0 {
			url := m.history[len(m.history)-1]
			m.history = m.history[:len(m.history)-1]
			m.loading = true
			return m, fetchCmd(m, url)
		}
		return m, nil

	default:
		if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.links) {
			m.loading = true
			return m, fetchCmd(m, m.links[n-1])
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.vp.View())
	b.WriteByte('\n')

	switch {
	case m.loading:
		fmt.Fprintf(&b, "%s fetching %s\n", m.spin.View(), m.status)
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	case m.warning != "":
		b.WriteString(warningStyle.Render("warning: "+m.warning) + "\n")
	default:
		b.WriteString(statusBarStyle.Render(m.status) + "\n")
	}

	if m.input.Focused() {
		b.WriteString(m.input.View())
	} else {
		b.WriteString("[/] address  [1-9] follow link  [b] back  [q] quit")
	}

	return b.String()
}
