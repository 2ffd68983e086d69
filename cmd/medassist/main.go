package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-medassist-client/apimodel"
	"github.com/jrsteele09/go-medassist-client/auth"
	"github.com/jrsteele09/go-medassist-client/internal/bootstrap"
	"github.com/jrsteele09/go-medassist-client/internal/config"
	"github.com/jrsteele09/go-medassist-client/internal/utils"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

const usage = `usage: medassist <command> [flags]

commands:
  login           -email -password
  register        -name -email -password [-tz]
  telegram-login  show a QR code and wait for the bot to confirm
  telegram-link   link a Telegram account to the logged-in user
  telegram-unlink detach the linked Telegram account
  web-login       -token (one-time token from the bot)
  webapp-login    [-init-data] (defaults to TELEGRAM_INIT_DATA)
  refresh         renew the access token now
  whoami          show the logged-in user
  medications     list medications
  intakes         [-from -to -medication]
  reminders       list reminders
  theme           [light|dark]
  logout          log out on this device
  logout-all      log out on every device
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	c, err := config.New()
	if err != nil {
		return err
	}

	logger := newLogger(c.GetEnv())
	app, err := bootstrap.New(c,
		bootstrap.WithLogger(logger),
		bootstrap.WithRedirect(func() {
			fmt.Fprintln(os.Stderr, "Your session has expired. Run `medassist login` again.")
		}),
	)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd(ctx, app, args[1:])
}

func newLogger(env string) zerolog.Logger {
	level := zerolog.WarnLevel
	if env == "DEV" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

type command func(ctx context.Context, app *bootstrap.App, args []string) error

var commands = map[string]command{
	"login":           loginCmd,
	"register":        registerCmd,
	"telegram-login":  telegramLoginCmd,
	"telegram-link":   telegramLinkCmd,
	"telegram-unlink": telegramUnlinkCmd,
	"web-login":       webLoginCmd,
	"webapp-login":    webAppLoginCmd,
	"refresh":         refreshCmd,
	"whoami":          whoamiCmd,
	"medications":     medicationsCmd,
	"intakes":         intakesCmd,
	"reminders":       remindersCmd,
	"theme":           themeCmd,
	"logout":          logoutCmd,
	"logout-all":      logoutAllCmd,
}

func loginCmd(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", config.GetEnv("MEDASSIST_PASSWORD", ""), "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := apimodel.LoginRequest{Email: *email, Password: *password}
	if err := app.Validator.ValidateLogin(req); err != nil {
		return err
	}
	if err := app.Sessions.Login(ctx, req); err != nil {
		return errors.New(app.Sessions.Snapshot().Error)
	}
	return whoamiCmd(ctx, app, nil)
}

func registerCmd(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", config.GetEnv("MEDASSIST_PASSWORD", ""), "account password")
	tz := fs.String("tz", "", "IANA time zone (defaults to DEFAULT_TIMEZONE)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := apimodel.RegisterRequest{Name: *name, Email: *email, Password: *password, TimeZoneID: utils.PtrOrNil(*tz)}
	if err := app.Validator.ValidateRegistration(req); err != nil {
		return err
	}
	if err := app.Sessions.Register(ctx, req); err != nil {
		return errors.New(app.Sessions.Snapshot().Error)
	}
	return whoamiCmd(ctx, app, nil)
}

func telegramLoginCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	poll, err := app.TelegramLogin.Start(ctx)
	if err != nil {
		return err
	}
	defer poll.Stop()

	if err := waitDeepLink(ctx, poll); err != nil {
		return err
	}
	return whoamiCmd(ctx, app, nil)
}

func telegramLinkCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	if u := app.Sessions.Snapshot().User; u.IsTelegramLinked() {
		return fmt.Errorf("telegram account %d is already linked", *u.TelegramUserID)
	}
	poll, err := app.TelegramLink.Start(ctx)
	if err != nil {
		return err
	}
	defer poll.Stop()

	if err := waitDeepLink(ctx, poll); err != nil {
		return err
	}
	return whoamiCmd(ctx, app, nil)
}

func telegramUnlinkCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	if err := app.TelegramLink.Unlink(ctx); err != nil {
		return err
	}
	fmt.Println("Telegram account unlinked.")
	return nil
}

func waitDeepLink(ctx context.Context, poll *auth.Poll) error {
	if qr, err := qrcode.New(poll.Ticket.DeepLink, qrcode.Medium); err == nil {
		fmt.Println(qr.ToSmallString(false))
	}
	fmt.Printf("Open %s and press Start.\n", poll.Ticket.DeepLink)
	fmt.Printf("The link is valid for %d minutes (until %s).\n",
		poll.Ticket.ExpiresInMinutes, poll.Ticket.ExpiresAt.Local().Format(time.Kitchen))
	return poll.Wait(ctx)
}

func webLoginCmd(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("web-login", flag.ContinueOnError)
	tok := fs.String("token", "", "one-time login token from the bot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *tok == "" {
		return errors.New("-token is required")
	}
	if err := app.Sessions.TelegramWebLogin(ctx, *tok); err != nil {
		return errors.New(app.Sessions.Snapshot().Error)
	}
	return whoamiCmd(ctx, app, nil)
}

func webAppLoginCmd(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("webapp-login", flag.ContinueOnError)
	initData := fs.String("init-data", app.Config.GetTelegramInitData(), "Mini-App initData")
	if err := fs.Parse(args); err != nil {
		return err
	}

	res := app.MiniApp.Init(ctx, *initData)
	switch {
	case res.Err != nil:
		return errors.New(res.Message)
	case !res.Attempted && !app.Sessions.IsAuthenticated():
		return errors.New("no initData given")
	}
	return whoamiCmd(ctx, app, nil)
}

func refreshCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	if err := app.Sessions.RefreshToken(ctx); err != nil {
		return err
	}
	exp, _ := app.Store.TokenExpires()
	fmt.Printf("Access token renewed, valid until %s\n", exp.Local().Format(time.RFC1123))
	return nil
}

func whoamiCmd(_ context.Context, app *bootstrap.App, _ []string) error {
	snap := app.Sessions.Snapshot()
	if !snap.Authenticated {
		return errors.New("not logged in")
	}
	displayAppname(app.Config.GetAppName())
	u := snap.User
	fmt.Printf("%s <%s>\n", u.Name, u.Email)
	fmt.Printf("  id:        %s\n", u.ID)
	fmt.Printf("  role:      %s\n", u.Role)
	fmt.Printf("  time zone: %s\n", u.TimeZoneID)
	if u.IsTelegramLinked() {
		fmt.Printf("  telegram:  %d @%s\n", *u.TelegramUserID, utils.Value(u.TelegramUsername))
	}
	return nil
}

func medicationsCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	list, err := app.Resources.Medications.Load(ctx)
	if err != nil {
		return err
	}
	w := table(os.Stdout)
	fmt.Fprintln(w, "ID\tNAME\tDOSAGE")
	for _, m := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, utils.Value(m.Dosage))
	}
	return w.Flush()
}

func intakesCmd(ctx context.Context, app *bootstrap.App, args []string) error {
	fs := flag.NewFlagSet("intakes", flag.ContinueOnError)
	from := fs.String("from", "", "start date, YYYY-MM-DD")
	to := fs.String("to", "", "end date, YYYY-MM-DD")
	medication := fs.String("medication", "", "medication id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := apimodel.IntakeFilter{MedicationID: *medication}
	loc := time.Local
	if u := app.Sessions.Snapshot().User; u != nil {
		loc = u.Location()
	}
	if *from != "" {
		t, err := time.ParseInLocation(time.DateOnly, *from, loc)
		if err != nil {
			return fmt.Errorf("-from: %w", err)
		}
		filter.FromDate = &t
	}
	if *to != "" {
		t, err := time.ParseInLocation(time.DateOnly, *to, loc)
		if err != nil {
			return fmt.Errorf("-to: %w", err)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		filter.ToDate = &end
	}

	list, err := app.API.ListIntakes(ctx, app.Sessions.UserID(), filter)
	if err != nil {
		return err
	}
	w := table(os.Stdout)
	fmt.Fprintln(w, "TIME\tMEDICATION\tNOTES")
	for _, in := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", in.IntakeTime.In(loc).Format(time.DateTime), in.MedicationName, utils.Value(in.Notes))
	}
	return w.Flush()
}

func remindersCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	list, err := app.Resources.Reminders.Load(ctx)
	if err != nil {
		return err
	}
	w := table(os.Stdout)
	fmt.Fprintln(w, "TIME\tMEDICATION\tDOSAGE\tACTIVE")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", r.Time, r.MedicationName, utils.Value(r.Dosage), r.IsActive)
	}
	return w.Flush()
}

func themeCmd(_ context.Context, app *bootstrap.App, args []string) error {
	if len(args) > 0 {
		if err := app.Preferences.SetTheme(args[0]); err != nil {
			return err
		}
	}
	fmt.Println(app.Preferences.Theme())
	return nil
}

func logoutCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	app.Sessions.Logout(ctx)
	fmt.Println("Logged out.")
	return nil
}

func logoutAllCmd(ctx context.Context, app *bootstrap.App, _ []string) error {
	if err := app.Sessions.LogoutEverywhere(ctx); err != nil {
		return errors.New(app.Sessions.Snapshot().Error)
	}
	fmt.Println("Logged out on every device.")
	return nil
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
