package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/thushan/chillm/pkg/chillm"
)

var errNoInput = errors.New("no input: pass text as arguments or pipe it on stdin")

// generationFlags are the per-call knobs shared by every text command. Only
// flags the user actually set reach the LLM.
type generationFlags struct {
	model       string
	temperature float64
	maxTokens   int
}

func (g *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&g.model, "model", "m", "", "local model id or .gguf path")
	cmd.Flags().Float64Var(&g.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().IntVar(&g.maxTokens, "max-tokens", 0, "maximum tokens to generate")
}

func (g *generationFlags) options(cmd *cobra.Command) []chillm.Option {
	var opts []chillm.Option
	if g.model != "" {
		opts = append(opts, chillm.WithModel(g.model))
	}
	if cmd.Flags().Changed("temperature") {
		opts = append(opts, chillm.WithTemperature(g.temperature))
	}
	if cmd.Flags().Changed("max-tokens") {
		opts = append(opts, chillm.WithMaxTokens(g.maxTokens))
	}
	return opts
}

type textRun func(ctx context.Context, llm *chillm.LLM, input string) (string, error)

// textCommand wires a one-shot command: read input, build the LLM, print the reply.
func (a *App) textCommand(use, short string, run textRun, extra func(*cobra.Command)) *cobra.Command {
	var gen generationFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := a.readInput(args)
			if err != nil {
				return err
			}
			llm, err := a.newLLM(cmd.Context(), gen.options(cmd)...)
			if err != nil {
				return err
			}
			out, err := run(cmd.Context(), llm, input)
			if err != nil {
				return err
			}
			return a.printResponse(llm, out)
		},
	}
	gen.register(cmd)
	if extra != nil {
		extra(cmd)
	}
	return cmd
}

func (a *App) textCommands() []*cobra.Command {
	var (
		background    string
		sentences     int
		language      string
		categories    []string
		extractFormat string
		schema        string
		question      string
	)

	generate := a.textCommand("generate [prompt]", "Generate text from a prompt",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Generate(ctx, input)
		}, nil)

	complete := a.textCommand("complete [text]", "Continue text without a chat template",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Complete(ctx, input)
		}, nil)

	ask := a.textCommand("ask [question]", "Answer a question, optionally grounded on context",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Ask(ctx, input, background)
		}, func(cmd *cobra.Command) {
			cmd.Flags().StringVarP(&background, "context", "c", "", "background text for the question")
		})

	summarize := a.textCommand("summarize [text]", "Summarise text",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Summarize(ctx, input, sentences)
		}, func(cmd *cobra.Command) {
			cmd.Flags().IntVarP(&sentences, "sentences", "s", chillm.DefaultSummarySentences, "sentences in the summary")
		})

	translate := a.textCommand("translate [text]", "Translate text",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Translate(ctx, input, language)
		}, func(cmd *cobra.Command) {
			cmd.Flags().StringVarP(&language, "to", "t", chillm.DefaultTargetLanguage, "target language")
		})

	classify := a.textCommand("classify [text]", "Classify text into one of the given categories",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Classify(ctx, input, categories)
		}, func(cmd *cobra.Command) {
			cmd.Flags().StringSliceVar(&categories, "categories", nil, "comma separated categories")
			_ = cmd.MarkFlagRequired("categories")
		})

	extract := a.textCommand("extract [text]", "Extract structured information from text",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			var parsed map[string]any
			if schema != "" {
				if err := json.UnmarshalFromString(schema, &parsed); err != nil {
					return "", fmt.Errorf("invalid --schema: %w", err)
				}
			}
			return llm.Extract(ctx, input, extractFormat, parsed)
		}, func(cmd *cobra.Command) {
			cmd.Flags().StringVar(&extractFormat, "format", chillm.DefaultExtractFormat, "output format")
			cmd.Flags().StringVar(&schema, "schema", "", "JSON object describing the fields to extract")
		})

	analyze := a.textCommand("analyze [file]", "Explain or answer a question about code",
		func(ctx context.Context, llm *chillm.LLM, input string) (string, error) {
			return llm.Analyze(ctx, input, question)
		}, func(cmd *cobra.Command) {
			cmd.Flags().StringVarP(&question, "question", "q", "", "question about the code")
		})
	analyze.RunE = a.analyzeRun(analyze.RunE)

	return []*cobra.Command{generate, complete, a.chatCommand(), ask, summarize, translate, classify, extract, analyze}
}

// analyzeRun lets analyze take a file path argument in place of inline code.
func (a *App) analyzeRun(next func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if data, err := os.ReadFile(args[0]); err == nil {
				args = []string{string(data)}
			}
		}
		return next(cmd, args)
	}
}

func (a *App) chatCommand() *cobra.Command {
	var gen generationFlags
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively, one message per line",
		RunE: func(cmd *cobra.Command, args []string) error {
			llm, err := a.newLLM(cmd.Context(), gen.options(cmd)...)
			if err != nil {
				return err
			}

			var history []chillm.Turn
			prompt := func() {
				if a.interactive() {
					fmt.Fprint(a.stdout, "> ")
				}
			}
			scanner := bufio.NewScanner(a.stdin)
			for prompt(); scanner.Scan(); prompt() {
				message := strings.TrimSpace(scanner.Text())
				switch message {
				case "":
					continue
				case "exit", "quit", "/bye":
					return nil
				}

				reply, err := llm.Chat(cmd.Context(), message, history)
				if err != nil {
					return err
				}
				history = append(history, chillm.Turn{User: message, Assistant: reply})
				fmt.Fprintln(a.stdout, reply)
			}
			return scanner.Err()
		},
	}
	gen.register(cmd)
	return cmd
}

func (a *App) readInput(args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	if a.interactive() {
		return "", errNoInput
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", err
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", errNoInput
	}
	return input, nil
}

// interactive reports whether stdin is a terminal rather than a pipe or file.
func (a *App) interactive() bool {
	f, ok := a.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type response struct {
	Response string       `json:"response"`
	State    chillm.State `json:"state"`
	Target   string       `json:"target,omitempty"`
}

func (a *App) printResponse(llm *chillm.LLM, out string) error {
	if !a.flags.jsonOut {
		_, err := fmt.Fprintln(a.stdout, out)
		return err
	}
	r := response{Response: out, State: llm.State()}
	if b := llm.Backend(); b != nil {
		r.Target = b.Target()
	}
	return a.printJSON(r)
}
