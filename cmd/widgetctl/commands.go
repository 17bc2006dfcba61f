package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatbotyard/chatbotyard/internal/client"
	"github.com/chatbotyard/chatbotyard/internal/domain"
	"github.com/chatbotyard/chatbotyard/internal/playground"
	"github.com/chatbotyard/chatbotyard/internal/widget"
)

const defaultAPI = "http://localhost:8080"

type commonFlags struct {
	api     *string
	project *string
	timeout *time.Duration
	width   *int
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		api:     fs.String("api", envOr("CHATBOTYARD_API", defaultAPI), "API base URL"),
		project: fs.String("project", "", "Project ID (required)"),
		timeout: fs.Duration("timeout", 30*time.Second, "Request timeout"),
		width:   fs.Int("width", 60, "Render width in columns"),
	}
}

func (c commonFlags) client() (*client.Client, error) {
	if *c.project == "" {
		return nil, errors.New("-project is required")
	}
	return client.New(*c.api, client.WithTimeout(*c.timeout))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func handleTryCommand(args []string) error {
	fs := flag.NewFlagSet("try", flag.ExitOnError)
	flags := addCommonFlags(fs)
	closed := fs.Bool("closed", false, "Start with the widget closed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := flags.client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	project, err := api.GetProject(ctx, *flags.project)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}

	initial := widget.Open
	if *closed {
		initial = widget.Closed
	}
	chat := playground.NewTryChatbot(api,
		playground.WithInitialVisibility(initial),
		playground.WithRequestTimeout(*flags.timeout))

	redraw := func() {
		fmt.Print(widget.RenderTerminal(chat.View(), *flags.width))
		if msg := chat.Error(); msg != "" {
			fmt.Println(errorStyle.Render(msg))
		}
	}

	if err := chat.Start(ctx, project); err != nil {
		redraw()
		return err
	}
	redraw()
	fmt.Println(infoStyle.Render("Type a message, or /open /close /history /quit"))

	return tryLoop(ctx, chat, os.Stdin, redraw)
}

func tryLoop(ctx context.Context, chat *playground.TryChatbot, in io.Reader, redraw func()) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			continue
		case "/quit":
			return nil
		case "/open":
			chat.OpenWidget()
		case "/close":
			chat.CloseWidget()
		case "/history":
			_ = chat.LoadHistory(ctx)
		default:
			chat.ClearError()
			_, _ = chat.Send(ctx, line)
		}
		redraw()

		if ctx.Err() != nil {
			return nil
		}
	}
}

func handlePreviewCommand(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)
	flags := addCommonFlags(fs)
	closed := fs.Bool("closed", false, "Render the closed launcher")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := flags.client()
	if err != nil {
		return err
	}

	initial := widget.Open
	if *closed {
		initial = widget.Closed
	}
	customizer := playground.NewCustomizer(api, playground.WithInitialVisibility(initial))
	if err := customizer.Load(context.Background(), *flags.project); err != nil {
		return err
	}
	fmt.Print(widget.RenderTerminal(customizer.View(), *flags.width))
	return nil
}

func handleConfigCommand(args []string) error {
	if len(args) < 1 || args[0] == "--help" || args[0] == "-h" {
		fmt.Println("usage: widgetctl config {export,import} -project ID [-file path.yaml]")
		return nil
	}

	switch args[0] {
	case "export":
		return handleConfigExport(args[1:])
	case "import":
		return handleConfigImport(args[1:])
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func handleConfigExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	flags := addCommonFlags(fs)
	file := fs.String("file", "", "Output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	api, err := flags.client()
	if err != nil {
		return err
	}
	customizer := playground.NewCustomizer(api)
	if err := customizer.Load(context.Background(), *flags.project); err != nil {
		return err
	}

	data, err := yaml.Marshal(customizer.Configuration())
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	if *file == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(*file, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *file, err)
	}
	fmt.Fprintln(os.Stderr, okStyle.Render("Exported configuration to "+*file))
	return nil
}

func handleConfigImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	flags := addCommonFlags(fs)
	file := fs.String("file", "", "Input file (default stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var data []byte
	var err error
	if *file == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}

	cfg, err := parseConfiguration(data)
	if err != nil {
		return err
	}

	api, err := flags.client()
	if err != nil {
		return err
	}
	ctx := context.Background()
	customizer := playground.NewCustomizer(api)
	if err := customizer.Load(ctx, *flags.project); err != nil {
		return err
	}
	if err := customizer.Edit(func(e *widget.Editor) error { return e.Apply(cfg) }); err != nil {
		return err
	}
	if err := customizer.Save(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, okStyle.Render("Saved configuration for "+*flags.project))
	return nil
}

// parseConfiguration decodes YAML into a configuration and fills the
// launcher icon default.
func parseConfiguration(data []byte) (domain.Configuration, error) {
	var cfg domain.Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse configuration: %w", err)
	}
	if cfg.Appearance.LauncherIcon == "" {
		cfg.Appearance.LauncherIcon = domain.LauncherChat
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
