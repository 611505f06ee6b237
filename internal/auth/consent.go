package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// openBrowser is swapped out in tests.
var openBrowser = func(rawURL string) error {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("refusing to open non-HTTP URL: %s", rawURL)
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", rawURL)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}

// TerminalConsent returns a ConsentFunc that runs a loopback HTTP server to
// capture the auth code. If that fails or times out, it falls back to a
// manual paste (code or full redirect URL) read from in.
func TerminalConsent(in io.Reader, out io.Writer, redirectWait time.Duration) ConsentFunc {
	return func(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
		// Work on a copy so the caller's RedirectURL is never touched.
		c := *cfg
		code, err := loopbackCode(ctx, &c, out, redirectWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			fmt.Fprintf(out, "%v; falling back to manual paste.\n", err)
			c = *cfg
			code, err = pastedCode(&c, in, out)
			if err != nil {
				return nil, err
			}
		}

		fmt.Fprintln(out, "Exchanging code for token…")
		tok, err := c.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		fmt.Fprintln(out, "Authentication successful.")
		return tok, nil
	}
}

// loopbackCode points cfg.RedirectURL at a random localhost port and waits
// for Google to redirect the browser there.
func loopbackCode(ctx context.Context, cfg *oauth2.Config, out io.Writer, wait time.Duration) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen on loopback: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/", port)

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing 'code' parameter", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication complete. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	if err := openBrowser(authURL); err != nil {
		fmt.Fprintln(out, "Open this URL in your browser to authorize promosweep:")
	} else {
		fmt.Fprintln(out, "A browser window will open. If it does not, copy this URL:")
	}
	fmt.Fprintln(out, authURL)
	fmt.Fprintf(out, "Waiting for redirect on %s …\n", cfg.RedirectURL)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case code := <-codeCh:
		return strings.TrimSpace(code), nil
	case <-time.After(wait):
		return "", errors.New("timeout waiting for redirect")
	}
}

func pastedCode(cfg *oauth2.Config, in io.Reader, out io.Writer) (string, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintln(out, "Open this URL in your browser to authorize promosweep:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Paste the AUTH CODE itself or the FULL redirect URL here, then press Enter.")
	fmt.Fprint(out, "> ")

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read auth code: %w", err)
		}
		return "", errors.New("empty authorization code")
	}
	return codeFromInput(sc.Text())
}

// codeFromInput accepts either a bare code or a redirect URL carrying ?code=.
func codeFromInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty authorization code")
	}
	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	code := u.Query().Get("code")
	if code == "" {
		return "", errors.New("no 'code' parameter found in pasted URL")
	}
	return code, nil
}
