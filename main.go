package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	tea "charm.land/bubbletea/v2"

	"github.com/tastebook/tastebook-cli/api"
	"github.com/tastebook/tastebook-cli/netutil"
	"github.com/tastebook/tastebook-cli/session"
	"github.com/tastebook/tastebook-cli/tui"
)

var (
	serverURL         string
	tokenFile         string
	deviceIDFile      string
	flagServerURL     *string
	flagTokenFile     *string
	configInitialized bool
)

func init() {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Define flags (but don't parse yet to avoid conflicts with test flags)
	flagServerURL = flag.String(
		"server-url",
		"",
		"Tastebook server URL (default: http://localhost:8080 or TASTEBOOK_SERVER_URL env)",
	)
	flagTokenFile = flag.String(
		"token-file",
		"",
		"Session storage file (default: .tastebook-session.json or TASTEBOOK_TOKEN_FILE env)",
	)
}

// initConfig parses flags and initializes configuration
// Separated from init() to avoid conflicts with test flag parsing
func initConfig() {
	if configInitialized {
		return
	}
	configInitialized = true

	flag.Parse()

	// Priority: flag > env > default
	serverURL = getConfig(*flagServerURL, "TASTEBOOK_SERVER_URL", "http://localhost:8080")
	tokenFile = getConfig(*flagTokenFile, "TASTEBOOK_TOKEN_FILE", ".tastebook-session.json")
	deviceIDFile = tokenFile + ".device"

	if err := validateServerURL(serverURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid TASTEBOOK_SERVER_URL: %v\n", err)
		os.Exit(1)
	}

	// Warn if using HTTP instead of HTTPS
	if strings.HasPrefix(strings.ToLower(serverURL), "http://") {
		fmt.Fprintln(
			os.Stderr,
			"⚠️  WARNING: Using HTTP instead of HTTPS. Tokens will be transmitted in plaintext!",
		)
		fmt.Fprintln(
			os.Stderr,
			"⚠️  This is only safe for local development. Use HTTPS in production.",
		)
		fmt.Fprintln(os.Stderr)
	}
}

// getConfig returns value with priority: flag > env > default
func getConfig(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return getEnv(envKey, defaultValue)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// loadOrCreateDeviceID returns the per-install device ID, generating and
// persisting a fresh UUID on first run or when the stored one is mangled.
func loadOrCreateDeviceID(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, err := uuid.Parse(id); err == nil {
			return id
		}
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to persist device ID: %v\n", err)
	}
	return id
}

// newClient wires the API client; session-expired notices go to d.
func newClient(d tui.Displayer) (*api.Client, error) {
	return api.New(api.Config{
		BaseURL:          serverURL,
		TokenFile:        tokenFile,
		DeviceID:         loadOrCreateDeviceID(deviceIDFile),
		OnSessionExpired: d.SessionExpired,
	})
}

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: tastebook [flags] <command> [args]

Commands:
  login          Sign in (flags: -email, -password, -remember, -device-token)
  logout         Sign out and clear the stored session
  whoami         Show the current session
  feed           Show the recipe feed (flag: -page)
  post <id>      Show one recipe post
  rate <id> <stars>       Rate a post 1-5
  comment <id> <text>     Comment on a post
  search <query>          Search recipes
  notebooks               List notebooks
  save <notebook> <post>  Save a post to a notebook
  notifications           List notifications (flag: -unread)
  allergies [set a,b,c]   Show or replace tracked allergens
  addrs                   List local network addresses for LAN preview

Flags:`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	initConfig()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if args[0] == "login" && isTTY() {
		err = runLoginTUI(ctx, args[1:])
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		err = dispatch(ctx, d, args)
	}
	if err != nil {
		os.Exit(1)
	}
}

// runLoginTUI runs the login flow with the BubbleTea front end on stderr so
// stdout pipes are not corrupted.
func runLoginTUI(ctx context.Context, args []string) error {
	// Credentials are prompted before the TUI takes over the terminal.
	creds, deviceToken, err := loginInput(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	m := tui.NewModel()
	// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
	// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
	}()

	d := tui.NewProgramDisplayer(p)
	d.Banner()
	runErr := runLogin(ctx, d, creds, deviceToken)
	p.Quit() // let BubbleTea drain terminal query responses before exiting
	wg.Wait()
	return runErr
}

func dispatch(ctx context.Context, d tui.Displayer, args []string) error {
	switch args[0] {
	case "login":
		creds, deviceToken, err := loginInput(args[1:])
		if err != nil {
			d.Fatal(err)
			return err
		}
		d.Banner()
		return runLogin(ctx, d, creds, deviceToken)
	case "logout":
		return runLogout(ctx, d)
	case "whoami":
		return runWhoami(ctx, d)
	case "feed":
		return runFeed(ctx, d, args[1:])
	case "post":
		return runPost(ctx, d, args[1:])
	case "rate":
		return runRate(ctx, d, args[1:])
	case "comment":
		return runComment(ctx, d, args[1:])
	case "search":
		return runSearch(ctx, d, args[1:])
	case "notebooks":
		return runNotebooks(ctx, d)
	case "save":
		return runSave(ctx, d, args[1:])
	case "notifications":
		return runNotifications(ctx, d, args[1:])
	case "allergies":
		return runAllergies(ctx, d, args[1:])
	case "addrs":
		return runAddrs(d)
	default:
		err := fmt.Errorf("unknown command: %s", args[0])
		d.Fatal(err)
		usage()
		return err
	}
}

// loginInput resolves credentials with the usual flag > env > prompt order.
func loginInput(args []string) (session.Credentials, string, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Account email (or TASTEBOOK_EMAIL env)")
	password := fs.String("password", "", "Account password (or TASTEBOOK_PASSWORD env)")
	remember := fs.Bool("remember", false, "Keep the session across restarts")
	deviceToken := fs.String(
		"device-token", "", "Re-authenticate with a device token instead of a password",
	)
	if err := fs.Parse(args); err != nil {
		return session.Credentials{}, "", err
	}

	if *deviceToken != "" {
		return session.Credentials{}, *deviceToken, nil
	}

	creds := session.Credentials{
		Email:    getConfig(*email, "TASTEBOOK_EMAIL", ""),
		Password: getConfig(*password, "TASTEBOOK_PASSWORD", ""),
		Remember: *remember,
	}

	reader := bufio.NewReader(os.Stdin)
	if creds.Email == "" {
		fmt.Fprint(os.Stderr, "Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return creds, "", fmt.Errorf("failed to read email: %w", err)
		}
		creds.Email = strings.TrimSpace(line)
	}
	if creds.Password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return creds, "", fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = strings.TrimSpace(line)
	}
	if creds.Email == "" || creds.Password == "" {
		return creds, "", errors.New("email and password are required")
	}
	return creds, "", nil
}

func runLogin(
	ctx context.Context,
	d tui.Displayer,
	creds session.Credentials,
	deviceToken string,
) error {
	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()
	s := client.Session()

	// An existing session that still yields a token wins over a re-login.
	if s.Profile() != nil {
		d.SessionFound()
		if tok, err := s.Token(ctx); err == nil {
			d.TokenValid()
			showSession(d, s, tok.Expiry)
			return nil
		}
		d.TokenExpired()
	}

	var profile *session.Profile
	if deviceToken != "" {
		d.Refreshing()
		profile, err = s.Resume(ctx, deviceToken)
	} else {
		d.LoggingIn(creds.Email)
		profile, err = s.Login(ctx, creds)
	}
	if err != nil {
		d.Fatal(err)
		return err
	}

	name := creds.Email
	if profile != nil && profile.Name != "" {
		name = profile.Name
	}
	d.LoginOK(name)

	if mode, ok := s.Mode(); ok && mode == session.ModePersistent {
		d.SessionSaved(tokenFile)
	} else {
		d.SessionEphemeral()
	}

	tok, err := s.Token(ctx)
	if err != nil {
		d.Fatal(err)
		return err
	}
	showSession(d, s, tok.Expiry)
	return nil
}

func showSession(d tui.Displayer, s *session.Manager, expiry time.Time) {
	name, role := "", ""
	if p := s.Profile(); p != nil {
		name, role = p.Name, p.Role
	}
	mode, _ := s.Mode()
	d.Done(name, role, mode.String(), time.Until(expiry))
}

func runLogout(ctx context.Context, d tui.Displayer) error {
	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	if err := client.Session().Logout(ctx); err != nil {
		d.Fatal(err)
		return err
	}
	d.LoggedOut()
	return nil
}

func runWhoami(ctx context.Context, d tui.Displayer) error {
	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()
	s := client.Session()

	tok, err := s.Token(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotAuthenticated) {
			d.NoSession()
		}
		return err
	}
	showSession(d, s, tok.Expiry)
	return nil
}

func runFeed(ctx context.Context, d tui.Displayer, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	page := fs.Int("page", 1, "Feed page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	posts, err := client.Feed(ctx, *page)
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	for _, p := range posts {
		fmt.Printf("%s  %-30s  by %-15s  ★ %.1f (%d)\n",
			p.ID, p.Title, p.Author.Name, p.Rating, p.RatingCount)
	}
	return nil
}

func runPost(ctx context.Context, d tui.Displayer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tastebook post <id>")
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	p, err := client.Post(ctx, args[0])
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	fmt.Printf("%s\nby %s  ★ %.1f (%d ratings, %d comments)\n\n%s\n",
		p.Title, p.Author.Name, p.Rating, p.RatingCount, p.CommentCnt, p.Description)
	if len(p.Ingredients) > 0 {
		fmt.Println("\nIngredients:")
		for _, ing := range p.Ingredients {
			fmt.Println("  -", ing)
		}
	}
	for i, step := range p.Steps {
		fmt.Printf("\n%d. %s\n", i+1, step)
	}
	return nil
}

func runRate(ctx context.Context, d tui.Displayer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: tastebook rate <id> <stars>")
	}
	stars, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid star count: %w", err)
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	p, err := client.RatePost(ctx, args[0], stars)
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	fmt.Printf("%s now rated ★ %.1f (%d ratings)\n", p.Title, p.Rating, p.RatingCount)
	return nil
}

func runComment(ctx context.Context, d tui.Displayer, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: tastebook comment <id> <text>")
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	if _, err := client.AddComment(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		d.APICallFailed(err)
		return err
	}
	d.APICallOK("comment")
	return nil
}

func runSearch(ctx context.Context, d tui.Displayer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: tastebook search <query>")
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	posts, err := client.SearchPosts(ctx, strings.Join(args, " "))
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	for _, p := range posts {
		fmt.Printf("%s  %-30s  by %s\n", p.ID, p.Title, p.Author.Name)
	}
	return nil
}

func runNotebooks(ctx context.Context, d tui.Displayer) error {
	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	nbs, err := client.Notebooks(ctx)
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	for _, nb := range nbs {
		fmt.Printf("%s  %-25s  %d posts\n", nb.ID, nb.Name, nb.PostCount)
	}
	return nil
}

func runSave(ctx context.Context, d tui.Displayer, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: tastebook save <notebook-id> <post-id>")
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	if err := client.SavePost(ctx, args[0], args[1]); err != nil {
		d.APICallFailed(err)
		return err
	}
	d.APICallOK("save")
	return nil
}

func runNotifications(ctx context.Context, d tui.Displayer, args []string) error {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	unread := fs.Bool("unread", false, "Only unread notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	ns, err := client.Notifications(ctx, *unread)
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	for _, n := range ns {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, n.CreatedAt.Format("2006-01-02 15:04"), n.Message)
	}
	return nil
}

func runAllergies(ctx context.Context, d tui.Displayer, args []string) error {
	client, err := newClient(d)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer client.Close()

	if len(args) >= 2 && args[0] == "set" {
		allergens := strings.Split(args[1], ",")
		for i := range allergens {
			allergens[i] = strings.TrimSpace(allergens[i])
		}
		if err := client.SetAllergies(ctx, allergens); err != nil {
			d.APICallFailed(err)
			return err
		}
		d.APICallOK("allergies")
		return nil
	}

	allergens, err := client.Allergies(ctx)
	if err != nil {
		d.APICallFailed(err)
		return err
	}
	for _, a := range allergens {
		fmt.Println(a)
	}
	return nil
}

func runAddrs(d tui.Displayer) error {
	addrs, err := netutil.Addresses()
	if err != nil {
		d.Fatal(err)
		return err
	}
	for _, a := range addrs {
		fmt.Println(a)
	}
	return nil
}
