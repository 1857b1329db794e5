// Command fieldwise resolves typed field values with a language model from
// the terminal. It loads one record from a JSON file, compiles the prompt,
// and prints the cast value.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/urfave/cli/v2"

	"github.com/fieldwise/fieldwise"
	"github.com/fieldwise/fieldwise/models"
	"github.com/fieldwise/fieldwise/prompt"
	"github.com/fieldwise/fieldwise/resolver"
)

func main() {
	app := &cli.App{
		Name:  "fieldwise",
		Usage: "resolve typed record fields with a language model",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a fieldwise.toml config file",
				EnvVars: []string{"FIELDWISE_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "resolve",
				Usage: "resolve one field of a record and print the value",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "record",
						Usage:    "path to the record JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Value: "char",
						Usage: "target field type (char, text, date, datetime, integer, float, monetary, boolean, html, selection)",
					},
					&cli.StringFlag{
						Name:     "prompt",
						Usage:    "resolution prompt, may contain data-ai-field markers",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:  "allowed",
						Usage: "allowed value as raw:label, repeatable (selection and relational types)",
					},
				},
				Action: runResolve,
			},
			{
				Name:   "repl",
				Usage:  "interactive resolve loop against one record",
				Action: runREPL,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "record",
						Usage:    "path to the record JSON file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Value: "char",
						Usage: "target field type for every prompt in the session",
					},
				},
			},
			{
				Name:  "init",
				Usage: "write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						path = "./fieldwise.toml"
					}
					if err := InitConfig(path); err != nil {
						return err
					}
					fmt.Printf("wrote %s\n", path)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// allowAccess grants everything; the CLI operates on the caller's own local
// record file.
type allowAccess struct{}

func (allowAccess) CanRead(context.Context, fieldwise.Record) bool { return true }
func (allowAccess) CanExecute(context.Context, int64) bool         { return true }

type session struct {
	config   *Config
	log      zerolog.Logger
	store    *fileStore
	resolver *resolver.Resolver
}

func newSession(c *cli.Context, recordPath string) (*session, error) {
	config, err := LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	store, err := loadRecordFile(recordPath)
	if err != nil {
		return nil, err
	}

	var opts []openai.Option
	if config.Model.APIKey != "" {
		opts = append(opts, openai.WithToken(config.Model.APIKey))
	}
	if config.Model.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.Model.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	r := resolver.New(store, models.NewLCGModel(llm)).
		WithModelName(config.Model.Name).
		WithWebGrounding(config.Resolve.WebGrounding).
		WithLogger(log)

	return &session{config: config, log: log, store: store, resolver: r}, nil
}

func runResolve(c *cli.Context) error {
	s, err := newSession(c, c.String("record"))
	if err != nil {
		return err
	}

	allowed, err := parseAllowed(c.StringSlice("allowed"))
	if err != nil {
		return err
	}

	value, err := s.resolveOnce(fieldwise.FieldType(c.String("type")), c.String("prompt"), allowed)
	if err != nil {
		return err
	}
	return printValue(value)
}

func runREPL(c *cli.Context) error {
	s, err := newSession(c, c.String("record"))
	if err != nil {
		return err
	}
	fieldType := fieldwise.FieldType(c.String("type"))

	rl, err := readline.New(fmt.Sprintf("%s> ", s.store.record.Model))
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("resolving %s fields on %s(%d); empty line or exit to quit\n",
		fieldType, s.store.record.Model, s.store.record.ID)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" || line == "exit" {
			return nil
		}

		value, err := s.resolveOnce(fieldType, line, nil)
		if err != nil {
			var unresolved *fieldwise.UnresolvedError
			if errors.As(err, &unresolved) {
				fmt.Printf("unresolved: %s\n", unresolved.Cause)
				continue
			}
			s.log.Error().Err(err).Msg("resolution failed")
			continue
		}
		if err := printValue(value); err != nil {
			return err
		}
	}
}

// resolveOnce compiles the prompt against the loaded record, then resolves
// the field. Every scalar field of the record is offered as context.
func (s *session) resolveOnce(
	fieldType fieldwise.FieldType,
	template string,
	allowed []fieldwise.AllowedValue,
) (any, error) {
	if !fieldType.Valid() {
		return nil, fmt.Errorf("unknown field type %q", fieldType)
	}

	compiled, err := prompt.Compile(context.Background(), template, prompt.Options{
		Replace: true,
		Store:   s.store,
		Access:  allowAccess{},
	})
	if err != nil {
		return nil, err
	}

	paths := s.store.contextPaths()
	paths = append(paths, compiled.FieldPaths...)

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Model.Timeout)
	defer cancel()

	start := time.Now()
	value, err := s.resolver.Resolve(ctx, resolver.Spec{
		Entity:        s.store.record,
		FieldType:     fieldType,
		Prompt:        compiled.Prompt,
		ContextFields: paths,
		AllowedValues: allowed,
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug().
		Dur("duration", time.Since(start)).
		Str("field_type", string(fieldType)).
		Msg("resolved")
	return value, nil
}

// parseAllowed parses repeated raw:label pairs. A pair without a colon uses
// the raw value as its own label.
func parseAllowed(pairs []string) ([]fieldwise.AllowedValue, error) {
	var allowed []fieldwise.AllowedValue
	for _, pair := range pairs {
		raw, label, found := strings.Cut(pair, ":")
		if raw == "" {
			return nil, fmt.Errorf("invalid allowed value %q", pair)
		}
		if !found {
			label = raw
		}
		allowed = append(allowed, fieldwise.AllowedValue{Raw: raw, Label: label})
	}
	return allowed, nil
}

func printValue(value any) error {
	if value == nil {
		fmt.Println("null")
		return nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
