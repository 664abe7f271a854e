package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agnivade/stt_relay/logging"
)

// Client streams an audio file to the relay and prints the final
// transcripts it sends back.
type Client struct {
	conn      *websocket.Conn
	audio     io.Reader
	chunkSize int
	interval  time.Duration
	linger    time.Duration
	log       *zap.Logger
	seen      *recentTranscripts
	out       io.Writer
	bufWriter *bufio.Writer

	wg         sync.WaitGroup
	readerDone chan struct{}
}

type options struct {
	url        string
	file       string
	outputPath string
	chunkSize  int
	interval   time.Duration
	linger     time.Duration
	threshold  float64
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "stt-client",
		Short:        "Stream an audio file to the relay and print final transcripts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "ws://localhost:3001/", "relay WebSocket URL")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "audio file to stream (required)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "output file path for transcriptions (optional)")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", 4096, "bytes per audio frame")
	cmd.Flags().DurationVar(&opts.interval, "interval", 100*time.Millisecond, "delay between audio frames")
	cmd.Flags().DurationVar(&opts.linger, "linger", 3*time.Second, "time to wait for transcripts after the file is sent")
	cmd.Flags().Float64Var(&opts.threshold, "similarity", 0.8, "similarity above which a transcript counts as a repeat")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	cmd.MarkFlagRequired("file")

	return cmd
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	if opts.chunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive, got %d", opts.chunkSize)
	}

	logger, err := logging.New(opts.logLevel, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	audio, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("failed to open audio file: %w", err)
	}
	defer audio.Close()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()
	logger.Info("Connected to relay", zap.String("url", opts.url))

	client := &Client{
		conn:       conn,
		audio:      audio,
		chunkSize:  opts.chunkSize,
		interval:   opts.interval,
		linger:     opts.linger,
		log:        logger,
		seen:       newRecentTranscripts(10, opts.threshold),
		out:        stdout,
		readerDone: make(chan struct{}),
	}

	if opts.outputPath != "" {
		outputFile, err := os.Create(opts.outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer outputFile.Close()

		client.bufWriter = bufio.NewWriter(outputFile)
		defer client.bufWriter.Flush()
	}

	return client.Run(ctx)
}

// Run streams the audio, waits for trailing transcripts and closes the
// connection.
func (c *Client) Run(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(c.readerDone)
		c.reader()
	}()
	defer c.wg.Wait()

	frames, err := c.writer(ctx)
	if err != nil {
		c.conn.Close()
		return err
	}
	c.log.Info("Audio sent", zap.Int("frames", frames))

	select {
	case <-c.readerDone:
	case <-ctx.Done():
	case <-time.After(c.linger):
	}
	c.Close()
	return nil
}

// writer sends the audio as binary frames of at most chunkSize bytes.
func (c *Client) writer(ctx context.Context) (int, error) {
	buf := make([]byte, c.chunkSize)
	frames := 0

	for {
		n, err := io.ReadFull(c.audio, buf)
		if n > 0 {
			if werr := c.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				if errors.Is(werr, net.ErrClosed) {
					return frames, nil
				}
				return frames, fmt.Errorf("websocket write error: %w", werr)
			}
			frames++
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("audio read error: %w", err)
		}

		if c.interval > 0 {
			select {
			case <-ctx.Done():
				return frames, nil
			case <-time.After(c.interval):
			}
		} else if ctx.Err() != nil {
			return frames, nil
		}
	}
}

func (c *Client) reader() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		for _, sentence := range finalTranscripts(data) {
			if c.seen.Seen(sentence) {
				c.log.Debug("Skipping repeated transcript", zap.String("transcript", sentence))
				continue
			}
			c.print(sentence)
		}
	}
}

func (c *Client) print(sentence string) {
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), sentence)
	fmt.Fprint(c.out, line)

	if c.bufWriter != nil {
		if _, err := c.bufWriter.WriteString(line); err != nil {
			c.log.Warn("Failed to write to output file", zap.Error(err))
			return
		}
		c.bufWriter.Flush()
	}
}

// Close sends a close frame and waits briefly for the relay to acknowledge it.
func (c *Client) Close() {
	err := c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err == nil {
		select {
		case <-c.readerDone:
		case <-time.After(time.Second):
		}
	}
	c.conn.Close()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
