// Command composite places the face from one photo onto every face of a
// template image and writes the result as PNG.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anime-shed/jersey-faceswap-go/internal/landmark"
	"github.com/anime-shed/jersey-faceswap-go/internal/logger"
	"github.com/anime-shed/jersey-faceswap-go/internal/observer"
	"github.com/anime-shed/jersey-faceswap-go/internal/repository"
	"github.com/anime-shed/jersey-faceswap-go/internal/service"
	"github.com/anime-shed/jersey-faceswap-go/internal/storage"
	"github.com/anime-shed/jersey-faceswap-go/internal/strategy"
	"github.com/anime-shed/jersey-faceswap-go/pkg/models"
)

func main() {
	var (
		sourcePath   = flag.String("source", "", "photo containing the face to use")
		templatePath = flag.String("template", "", "template image to composite onto")
		outPath      = flag.String("out", "out.png", "output PNG path")
		mode         = flag.String("mode", strategy.Standard, "pipeline preset")
		cascades     = flag.String("cascades", "./cascade", "directory with pigo cascades")
		maxDim       = flag.Int("max-dim", 4096, "maximum image width or height")
		fallback     = flag.Bool("fallback", false, "write the template unchanged if compositing fails")
		timeout      = flag.Duration("timeout", time.Minute, "overall deadline")
		verbose      = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *sourcePath == "" || *templatePath == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		logger.SetLevel("debug")
	}

	if err := run(*sourcePath, *templatePath, *outPath, *mode, *cascades, *maxDim, *fallback, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "composite:", err)
		os.Exit(1)
	}
}

func run(sourcePath, templatePath, outPath, mode, cascades string, maxDim int, fallback bool, timeout time.Duration) error {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return err
	}

	provider, err := landmark.NewPigoProvider(landmark.DefaultPigoConfig(cascades))
	if err != nil {
		return err
	}
	defer provider.Close()

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	defer events.Wait()

	limits := storage.DefaultLimits()
	svc := service.NewFaceSwapService(
		repository.NewTemplateRepository(nil, nil),
		provider,
		events,
		nil,
		service.Config{
			DefaultMode:        mode,
			MaxDimension:       maxDim,
			MaxImageBytes:      limits.MaxBytes,
			FallbackToTemplate: fallback,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := svc.Swap(ctx, models.SwapRequest{Source: source, Template: template, Mode: mode})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, resp.PNG, 0o644); err != nil {
		return err
	}

	var summary bytes.Buffer
	enc := json.NewEncoder(&summary)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	_, err = os.Stdout.Write(summary.Bytes())
	return err
}
