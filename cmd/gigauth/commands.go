package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/internal/stubserver"
	flag "github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"golang.org/x/term"
)

func runLogin(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.StringP("email", "e", "", "account email")
	passwordFile := fs.String("password-file", "", "read the password from this file instead of prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("--email is required")
	}

	secret, err := readSecret("Password: ", *passwordFile)
	if err != nil {
		return err
	}

	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	sess, err := engine.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", describeIdentity(sess.Identity.Email, sess.Identity.Name, sess.Identity.Role))
	return nil
}

func runRegister(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.StringP("email", "e", "", "account email")
	name := fs.String("name", "", "display name")
	role := fs.String("role", "freelancer", "freelancer or client")
	passwordFile := fs.String("password-file", "", "read the password from this file instead of prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := readSecret("Password: ", *passwordFile)
	if err != nil {
		return err
	}
	confirm := secret
	if *passwordFile == "" {
		if confirm, err = readSecret("Confirm password: ", ""); err != nil {
			return err
		}
	}

	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	sess, err := engine.Register(ctx, gigauth.RegisterInput{
		Name:            *name,
		Email:           *email,
		Password:        secret,
		ConfirmPassword: confirm,
		Role:            *role,
	})
	if fields := gigauth.ValidationFields(err); fields != nil {
		for field, msg := range fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
	}
	if err != nil {
		return err
	}
	fmt.Printf("registered and signed in as %s\n", describeIdentity(sess.Identity.Email, sess.Identity.Name, sess.Identity.Role))
	return nil
}

func runWhoami(ctx context.Context, g globals, args []string) error {
	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := engine.Coordinator().Verify(ctx)
	if err != nil {
		return err
	}
	fmt.Println(describeIdentity(id.Email, id.Name, id.Role))
	if id.ID != "" {
		fmt.Printf("id: %s\n", id.ID)
	}
	return nil
}

func runCall(ctx context.Context, g globals, args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	method := fs.StringP("method", "X", http.MethodGet, "HTTP method")
	data := fs.StringP("data", "D", "", "JSON request body; @file reads it from a file")
	query := fs.StringP("query", "q", "", "gjson path to print instead of the whole body")
	timeout := fs.Duration("timeout", 0, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: gigauth call [flags] <path>")
	}

	req := gigauth.Request{Method: strings.ToUpper(*method), Path: fs.Arg(0), Timeout: *timeout}
	if *data != "" {
		body, err := readBody(*data)
		if err != nil {
			return err
		}
		req.Body = json.RawMessage(body)
	}

	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	outcome := engine.Send(ctx, req)
	success, ok := outcome.(gigauth.Success)
	if !ok {
		return &gigauth.OutcomeError{Method: req.Method, Path: req.Path, Outcome: outcome}
	}

	payload := success.Payload
	if *query != "" {
		payload = []byte(gjson.GetBytes(payload, *query).Raw)
	}
	_, err = os.Stdout.Write(append(payload, '\n'))
	return err
}

func runLogout(ctx context.Context, g globals, _ []string) error {
	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func runStatus(_ context.Context, g globals, _ []string) error {
	engine, err := openEngine(g)
	if err != nil {
		return err
	}
	defer engine.Close()

	sess := engine.Coordinator().Session()
	if sess == nil {
		fmt.Println("anonymous")
		return nil
	}
	fmt.Printf("authenticated as %s\n", describeIdentity(sess.Identity.Email, sess.Identity.Name, sess.Identity.Role))
	if !sess.ExpiresAt.IsZero() {
		fmt.Printf("access credential expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	}
	if !sess.CanRefresh() {
		fmt.Println("no refresh credential; the session ends when the access credential expires")
	}
	return nil
}

func runServe(ctx context.Context, _ globals, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:5000", "listen address")
	ttl := fs.Duration("access-ttl", 15*time.Minute, "access credential lifetime")
	rotate := fs.Bool("rotate-refresh", false, "issue a new refresh credential on every refresh")
	demoEmail := fs.String("demo-email", "demo@example.com", "seeded account email; empty disables seeding")
	demoPassword := fs.String("demo-password", "demo-secret", "seeded account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	backend, err := stubserver.New(stubserver.Config{AccessTTL: *ttl, RotateRefresh: *rotate})
	if err != nil {
		return err
	}
	if *demoEmail != "" {
		if _, err := backend.AddUser(*demoEmail, *demoPassword, "Demo", "FREELANCER"); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", backend.Handler()))

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	fmt.Fprintf(os.Stderr, "stub backend listening on http://%s/api\n", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func readSecret(prompt, path string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for a password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(secret), nil
}

func readBody(data string) ([]byte, error) {
	var body []byte
	if name, ok := strings.CutPrefix(data, "@"); ok {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if body, err = io.ReadAll(f); err != nil {
			return nil, err
		}
	} else {
		body = []byte(data)
	}
	if !json.Valid(body) {
		return nil, errors.New("request body is not valid JSON")
	}
	return body, nil
}

func describeIdentity(email, name, role string) string {
	var b strings.Builder
	if name != "" {
		b.WriteString(name)
		b.WriteString(" <")
		b.WriteString(email)
		b.WriteString(">")
	} else {
		b.WriteString(email)
	}
	if role != "" {
		b.WriteString(" [")
		b.WriteString(strings.ToLower(role))
		b.WriteString("]")
	}
	return b.String()
}
