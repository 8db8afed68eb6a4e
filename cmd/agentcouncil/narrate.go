package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/agentcouncil/config"
	"github.com/BaSui01/agentcouncil/llm/speech"
	"github.com/BaSui01/agentcouncil/types"
)

// =============================================================================
// 🔊 narrate 命令
// =============================================================================

// narrateOptions narrate 命令参数
type narrateOptions struct {
	configPath string
	in         string
	out        string
	local      bool
	category   string
	apiKey     string
}

func runNarrate(args []string) {
	var opts narrateOptions
	fs := flag.NewFlagSet("narrate", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.in, "in", "-", `Text or markdown file ("-" for stdin)`)
	fs.StringVar(&opts.out, "out", "./narration", "Directory receiving audio chunks")
	fs.BoolVar(&opts.local, "local", false, "Speak with the local voice command")
	fs.StringVar(&opts.category, "category", string(types.CategoryAssistant), "Voice profile category")
	fs.StringVar(&opts.apiKey, "key", "", "TTS API key (defaults to speech.api_key)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, _ := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := narrate(ctx, cfg.Speech, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Narration failed: %v\n", err)
		os.Exit(1)
	}
	if opts.local {
		fmt.Printf("Spoke %d chunk(s) locally\n", n)
		return
	}
	fmt.Printf("Wrote %d chunk(s) to %s\n", n, opts.out)
}

// narrate 读取文本并朗读到结束，返回分段数。
// 缺少密钥或指定 --local 时走本地语音，远程合成失败的剩余部分同样回退本地。
func narrate(ctx context.Context, cfg config.SpeechConfig, opts narrateOptions, logger *zap.Logger) (int, error) {
	text, err := readInput(opts.in)
	if err != nil {
		return 0, err
	}

	category, err := types.ParseCategory(opts.category)
	if err != nil {
		return 0, err
	}

	limit := cfg.ChunkLimit
	if limit <= 0 {
		limit = speech.DefaultChunkLimit
	}
	chunks := speech.Chunk(speech.StripMarkup(text), limit)
	if len(chunks) == 0 {
		return 0, errors.New("nothing to narrate")
	}

	var tts speech.TTSProvider
	if !opts.local {
		tts = buildTTS(cfg)
	}
	key := opts.apiKey
	if key == "" {
		key = cfg.APIKey
	}

	narrator := speech.NewNarrator(tts, &speech.DirSink{Dir: opts.out}, logger,
		speech.WithChunkLimit(limit),
		speech.WithLocalVoice(speech.NewCommandVoice(cfg.LocalBinary)),
	)
	narrator.Speak(ctx, speech.SpeakRequest{
		Text:    text,
		APIKey:  key,
		Model:   cfg.Model,
		Format:  cfg.Format,
		Profile: speech.ProfileFor(category),
	})
	if narrator.Status().Local && !opts.local {
		logger.Warn("no TTS provider or key configured, narrating with the local voice",
			zap.String("binary", cfg.LocalBinary))
	}

	// 朗读在后台进行，收到中断时主动停止
	if err := narrator.Wait(ctx); err != nil {
		narrator.Stop()
		return 0, err
	}
	return len(chunks), nil
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}
