package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"d30print/internal/bitmap"
	"d30print/internal/config"
	"d30print/internal/journal"
	"d30print/internal/printer"
	"d30print/internal/protocol"
	"d30print/internal/render"
	"d30print/internal/transport"
)

const scanTimeout = 10 * time.Second

func main() {
	var (
		imagePath  = flag.String("image", "", "print an image file instead of text")
		fontPath   = flag.String("font", "", "path to a TTF font file")
		fruit      = flag.Bool("fruit", false, "enable offsets to print on a fruit label")
		device     = flag.String("device", "", "BLE device address (auto-discover if not provided)")
		configPath = flag.String("config", "", "path to a config file")
		history    = flag.Int("history", 0, "show the last N printed jobs and exit")
		verbose    = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [TEXT]\n\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		die(err)
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *fontPath != "" {
		cfg.Font = *fontPath
	}
	if *fruit {
		cfg.LabelPreset = render.Fruit.Name
	}

	if *history > 0 {
		if err := showHistory(cfg, *history); err != nil {
			die(err)
		}
		return
	}

	text := flag.Arg(0)
	if *imagePath == "" && text == "" {
		die(errors.New("either a TEXT argument or the -image option is required"))
	}
	if *imagePath != "" && text != "" {
		die(errors.New("cannot use both a TEXT argument and the -image option"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, text, *imagePath); err != nil {
		die(err)
	}
}

func die(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func run(ctx context.Context, cfg *config.Config, text, imagePath string) error {
	preset := cfg.Preset()

	var src image.Image
	var err error
	if imagePath != "" {
		if src, err = render.LoadImage(imagePath); err != nil {
			return err
		}
	} else {
		if src, err = render.RenderText(text, cfg.Font, preset); err != nil {
			return err
		}
	}

	fmt.Println("Preparing image...")
	quantized, err := render.Quantize(src, preset)
	if err != nil {
		return err
	}
	ib, err := bitmap.FromPaletted(quantized)
	if err != nil {
		return err
	}
	packed, err := bitmap.Pack(ib)
	if err != nil {
		return err
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Disconnect()

	session := printer.NewSession(
		&transport.Chunker{
			Writer:       conn,
			MaxChunkSize: cfg.MaxChunkSize,
			InitDelay:    cfg.InitDelay(),
			DataDelay:    cfg.DataDelay(),
		},
		&protocol.Framer{BandHeight: cfg.BandHeight},
	)

	fmt.Println("Sending print job...")
	printErr := session.Print(ctx, packed)

	recordJob(cfg, session, text, imagePath, len(packed.Data()))

	if printErr != nil {
		return printErr
	}
	fmt.Println("Print complete!")
	return nil
}

func connect(ctx context.Context, cfg *config.Config) (*transport.BluetoothConnection, error) {
	var conn *transport.BluetoothConnection
	var err error

	if cfg.Device != "" {
		fmt.Printf("Connecting to printer at %s...\n", cfg.Device)
		conn, err = transport.FromAddress(cfg.Device)
	} else {
		fmt.Println("Scanning for Phomemo D30 printer...")
		scanCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		defer cancel()
		conn, err = transport.FromName(scanCtx, "D30")
		if errors.Is(err, transport.ErrNoDevicesFound) {
			return nil, errors.New("no Phomemo D30 printer found; ensure it's powered on and in range")
		}
	}
	if err != nil {
		return nil, err
	}

	if err := conn.Connect(); err != nil {
		return nil, err
	}
	fmt.Println("Connected!")
	return conn, nil
}

// recordJob appends the job to the history database when one is configured.
// History is best effort only; it never fails a print.
func recordJob(cfg *config.Config, session *printer.Session, text, imagePath string, payloadBytes int) {
	if cfg.Journal == "" {
		return
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		slog.Error("Couldn't open print journal", "error", err)
		return
	}
	defer j.Close()

	entry := journal.Entry{
		CreatedAt: time.Now(),
		Source:    "text",
		Detail:    text,
		Preset:    cfg.LabelPreset,
		Bytes:     payloadBytes,
		State:     session.State().String(),
	}
	if imagePath != "" {
		entry.Source = "image"
		entry.Detail = imagePath
	}

	if err := j.Record(entry); err != nil {
		slog.Error("Couldn't record print job", "error", err)
	}
}

func showHistory(cfg *config.Config, n int) error {
	if cfg.Journal == "" {
		return errors.New("no journal path configured; set journal in the config file")
	}

	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(n)
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s  %-8s %-8s %-9s %6dB  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.State,
			e.Source,
			e.Preset,
			e.Bytes,
			e.Detail,
		)
	}
	return nil
}
