// avatar-watch - follow a running go-avatar preview server from the terminal
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-avatar/internal/config"
	"github.com/teslashibe/go-avatar/pkg/preview"
	"github.com/teslashibe/go-avatar/pkg/tracking"
)

func main() {
	addr := flag.String("addr", "localhost:"+config.Port(config.DefaultPort), "Preview server address")
	snapshot := flag.String("snapshot", "", "Save the latest rendered frame to this file and exit")
	smoothing := flag.Float64("smoothing", 0, "Set the smoothing factor (0-1] and exit")
	frames := flag.Bool("frames", false, "Measure the rendered frame rate instead of printing status")
	flag.Parse()

	client, err := preview.NewClient(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch {
	case *snapshot != "":
		err = saveSnapshot(ctx, client, *snapshot)
	case *smoothing > 0:
		err = setSmoothing(ctx, client, *smoothing)
	case *frames:
		fmt.Printf("🎞️  Measuring %s (Ctrl+C to exit)\n", client.URL("/ws/frames"))
		err = measureFrames(ctx, client)
	default:
		fmt.Printf("👀 Watching %s (Ctrl+C to exit)\n", client.URL("/ws/status"))
		err = client.WatchStatus(ctx, printStatus)
		fmt.Println()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func printStatus(s tracking.Status) {
	fmt.Printf("\r🎭 %-9s x=%6.1f y=%6.1f rot=%6.1f° scale=%4.2f | frames %d detections %d misses %d     ",
		s.Expression,
		s.Rendered.X, s.Rendered.Y,
		tracking.Degrees(s.Rendered.Rotation),
		s.Rendered.Scale,
		s.Stats.Frames, s.Stats.Detections, s.Stats.Misses)
}

func saveSnapshot(ctx context.Context, client *preview.Client, path string) error {
	jpeg, err := client.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return err
	}
	fmt.Printf("📸 Saved %s (%d bytes)\n", path, len(jpeg))
	return nil
}

func setSmoothing(ctx context.Context, client *preview.Client, alpha float64) error {
	params, err := client.SetTuning(ctx, tracking.TuningParams{Smoothing: alpha})
	if err != nil {
		return err
	}
	fmt.Printf("🎛️  smoothing=%.2f detection=%.1fHz threshold=%.2f\n",
		params.Smoothing, params.DetectionHz, params.ExpressionThreshold)
	return nil
}

func measureFrames(ctx context.Context, client *preview.Client) error {
	count, bytes := 0, 0
	start := time.Now()
	err := client.WatchFrames(ctx, func(jpeg []byte) {
		count++
		bytes += len(jpeg)
		if elapsed := time.Since(start); elapsed >= time.Second {
			fmt.Printf("\r📷 %.1f fps | %d KB/frame     ", float64(count)/elapsed.Seconds(), bytes/count/1024)
			count, bytes = 0, 0
			start = time.Now()
		}
	})
	fmt.Println()
	return err
}
