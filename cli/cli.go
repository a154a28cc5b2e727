package cli

import (
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"
	. "github.com/stevegt/goadapt"
	"github.com/stevegt/azchat/chat"
	"github.com/stevegt/azchat/client"
	"github.com/stevegt/azchat/config"
	"github.com/stevegt/azchat/openai"
	"github.com/stevegt/azchat/sessionlog"
	"github.com/stevegt/azchat/util"
)

// Version is the version of azchat.
const Version = "0.1.0"

// cmdChat is the struct for the chat subcommand, which is also the
// default when no subcommand is given.  Its options are global flags
// so that they work without naming the subcommand.
type cmdChat struct{}

type cmdLog struct {
	File    string `arg:"" type:"existingfile" help:"Conversation log file to read."`
	Entries bool   `short:"e" help:"Print every entry instead of a summary."`
}

type cmdVersion struct{}

type cliArgs struct {
	Chat       cmdChat    `cmd:"" default:"1" help:"Have an interactive conversation with an Azure OpenAI deployment."`
	EnvFile    string     `name:"env-file" type:"path" help:"dotenv file to load before reading the environment (default: .env if present)."`
	ExitWords  []string   `name:"exit-word" short:"x" help:"Additional word that ends the conversation; may be repeated."`
	Log        cmdLog     `cmd:"" help:"Summarize or print a conversation log."`
	LogDir     string     `short:"d" help:"Directory for the conversation log (overrides AZCHAT_LOG_DIR)."`
	Sysmsg     string     `name:"sysmsg" short:"s" default:"" help:"System message that primes the assistant (overrides AZCHAT_SYSTEM_PROMPT)."`
	TokenLimit int        `short:"t" help:"Warn once the conversation exceeds this many tokens (overrides AZCHAT_TOKEN_LIMIT)."`
	Verbose    bool       `short:"v" help:"Show debug information on stderr."`
	Version    cmdVersion `cmd:"" help:"Show the version of azchat."`
}

// CliConfig contains the configuration for azchat's cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Now returns the session start time.
	Now func() time.Time
	// NewClient returns the completion gateway for a validated config.
	NewClient func(cfg *config.Config) client.ChatClient
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "azchat",
		Description: "An interactive command-line chat with an Azure OpenAI deployment; every turn is logged to a timestamped file.",
		Version:     Version,
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Now:         time.Now,
		NewClient:   newAzureClient,
	}
}

func newAzureClient(cfg *config.Config) client.ChatClient {
	return openai.NewAzureChatClient(cfg.Endpoint, cfg.Deployment, cfg.APIKey, cfg.APIVersion)
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.
//
// We use this function instead of kong.Parse() so that we can pass in
// the arguments to parse, which lets tests drive the cli with buffers.
func Cli(args []string, cc *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		cc.Stdin,
		cc.Stdout,
		cc.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	options := []kong.Option{
		kong.Name(cc.Name),
		kong.Description(cc.Description),
		kong.Exit(cc.Exit),
		kong.Writers(cc.Stdout, cc.Stderr),
		kong.Vars{
			"version": cc.Version,
		},
	}

	var cli cliArgs
	parser, err := kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		// cc.Exit may return, e.g. in tests
		rc = 1
		return rc, nil
	}

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)

	switch cmd {
	case "chat":
		rc, err = runChat(&cli, cc)
		Ck(err)
	case "log <file>":
		err = showLog(cli.Log.File, cli.Log.Entries, cc)
		Ck(err)
	case "version":
		Pf("%s version %s\n", cc.Name, cc.Version)
	default:
		Fpf(cc.Stderr, "Error: unrecognized command: %s\n", cmd)
		rc = 1
	}
	return
}

// runChat loads the configuration and runs one chat session.  Missing
// configuration or a failure reading stdin is reported on stderr and
// yields rc 1.
func runChat(cli *cliArgs, cc *CliConfig) (rc int, err error) {
	defer Return(&err)

	cfg, err := config.Load(cli.EnvFile)
	if err != nil {
		Fpf(cc.Stderr, "Error: %v\n", err)
		return 1, nil
	}
	if cli.Sysmsg != "" {
		cfg.SystemPrompt = cli.Sysmsg
	}
	if cli.LogDir != "" {
		cfg.LogDir = cli.LogDir
	}
	if cli.TokenLimit > 0 {
		cfg.TokenLimit = cli.TokenLimit
	}
	err = cfg.Validate()
	if err != nil {
		Fpf(cc.Stderr, "Error: %v\n", err)
		Fpf(cc.Stderr, "Set %s, %s and %s in the environment or a .env file.\n",
			config.EnvEndpoint, config.EnvDeployment, config.EnvAPIKey)
		return 1, nil
	}
	Debug("endpoint %s deployment %s api-version %s", cfg.Endpoint, cfg.Deployment, cfg.APIVersion)

	session := chat.NewSession(cfg.SystemPrompt, cfg.LogDir, cc.Now(), cc.Stderr)
	defer session.Close()
	err = session.Transcript.InitTokenizer()
	Ck(err)

	loop := chat.NewLoop(session, cc.NewClient(cfg), cc.Stdin, cc.Stdout, cc.Stderr)
	words := append([]string{}, chat.DefaultExitWords...)
	loop.ExitWords = util.AppendUnique(words, cli.ExitWords...)
	loop.TokenLimit = cfg.TokenLimit

	err = loop.Run()
	if err != nil {
		Fpf(cc.Stderr, "Error: %v\n", err)
		return 1, nil
	}
	return
}

// showLog prints a per-role summary of a conversation log, or every
// entry if all is true.
func showLog(fn string, all bool, cc *CliConfig) (err error) {
	defer Return(&err)
	entries, err := sessionlog.ReadLog(fn)
	Ck(err)

	if all {
		for _, e := range entries {
			Pf("%s", sessionlog.FormatEntry(e.Timestamp, e.Role, e.Content))
		}
	} else {
		Pf("%d entries\n", len(entries))
		if len(entries) > 0 {
			first := entries[0].Timestamp.Format(sessionlog.TimeFormat)
			last := entries[len(entries)-1].Timestamp.Format(sessionlog.TimeFormat)
			Pf("from %s to %s\n", first, last)
		}
		var roles []string
		counts := make(map[string]int)
		for _, e := range entries {
			roles = util.AppendUnique(roles, e.Role)
			counts[e.Role]++
		}
		for _, role := range roles {
			Pf("%-10s %d\n", role, counts[role])
		}
	}

	err = sessionlog.CheckOrder(entries)
	if err != nil {
		Fpf(cc.Stderr, "warning: %v\n", err)
		err = nil
	}
	return
}
