package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/ocr"
	"github.com/ngmgroup/ngm-hub-core/internal/scan"
)

// scan-receipt runs the extraction cascade against one receipt file and
// prints the result, for tuning tier thresholds outside the server.
func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	model := flag.String("model", "gpt-4o", "Model to use for structuring")
	languages := flag.String("languages", "eng", "Comma-separated OCR languages")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall scan timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: scan-receipt [flags] <receipt.pdf|jpg|png>\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	_ = gotenv.Load()
	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "ERROR: OPENAI_API_KEY not set and no --key flag provided\n")
		os.Exit(1)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}

	mimeType := mimeFromExt(path)
	if mimeType == "" {
		fmt.Fprintf(os.Stderr, "Unsupported file type: %s\n", path)
		os.Exit(1)
	}

	engine := ocr.NewTesseractEngine(strings.Split(*languages, ","), logger)
	pipeline := scan.NewPipeline(
		scan.NewPDFTextTier(logger),
		scan.NewLocalOCRTier(engine, logger),
		scan.NewOpenAIExtractor(*apiKey, *model, logger),
		nil,
		scan.DefaultTimeouts(),
		logger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	result, err := pipeline.Scan(ctx, scan.Request{
		Data:     data,
		MIMEType: mimeType,
		Mode:     "cli",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Method: %s  Confidence: %.1f  Match: %s  Elapsed: %v\n",
		result.ExtractionMethod, result.Confidence, result.TotalMatchType, time.Since(start).Round(time.Millisecond))

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}
