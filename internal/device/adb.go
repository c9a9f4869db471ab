package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultADB   = "adb"
	dumpPath     = "/sdcard/window_dump.xml"
	hierarchyEnd = "</hierarchy>"
)

// Android keycodes, see android.view.KeyEvent.
var keycodes = map[Key]int{
	KeyHome: 3,
	KeyBack: 4,
}

// Shell runs one adb invocation and returns its stdout.
type Shell interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type execShell struct {
	bin    string
	serial string
}

// NewShell returns a Shell backed by the adb binary. An empty serial lets
// adb pick the only attached device.
func NewShell(bin, serial string) Shell {
	if strings.TrimSpace(bin) == "" {
		bin = defaultADB
	}
	return &execShell{bin: bin, serial: strings.TrimSpace(serial)}
}

func (s *execShell) Run(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+2)
	if s.serial != "" {
		full = append(full, "-s", s.serial)
	}
	full = append(full, args...)
	cmd := exec.CommandContext(ctx, s.bin, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return out, fmt.Errorf("%s %s: %w", s.bin, strings.Join(args, " "), err)
		}
		return out, fmt.Errorf("%s %s: %w: %s", s.bin, strings.Join(args, " "), err, msg)
	}
	return out, nil
}

// ADB drives a real Android device or emulator through adb and the
// uiautomator command line tool.
type ADB struct {
	shell  Shell
	logger zerolog.Logger
}

// ConnectADB checks that exactly one usable device answers on shell and
// returns a driver for it.
func ConnectADB(ctx context.Context, shell Shell, logger zerolog.Logger) (*ADB, error) {
	out, err := shell.Run(ctx, "get-state")
	if err != nil {
		return nil, wrap("adb", fmt.Errorf("connect: %w", err))
	}
	if state := strings.TrimSpace(string(out)); state != "device" {
		return nil, wrap("adb", fmt.Errorf("connect: device state %q", state))
	}
	d := &ADB{shell: shell, logger: logger}
	if model, err := shell.Run(ctx, "shell", "getprop", "ro.product.model"); err == nil {
		logger.Info().Str("model", strings.TrimSpace(string(model))).Msg("connected to device")
	}
	return d, nil
}

func (d *ADB) Hierarchy(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// uiautomator exits 0 even when it could not dump; the file on the
	// device then still holds the previous screen.
	msg, err := d.shell.Run(ctx, "shell", "uiautomator", "dump", dumpPath)
	if err != nil {
		return nil, wrap("adb", fmt.Errorf("dump hierarchy: %w", err))
	}
	if !bytes.Contains(msg, []byte("dumped to")) {
		return nil, wrap("adb", fmt.Errorf("%w: dump hierarchy: %s", ErrStale, strings.TrimSpace(string(msg))))
	}
	out, err := d.shell.Run(ctx, "exec-out", "cat", dumpPath)
	if err != nil {
		return nil, wrap("adb", fmt.Errorf("read hierarchy: %w", err))
	}
	return trimDump(out)
}

// trimDump cuts anything the dump tool printed around the XML document.
func trimDump(out []byte) ([]byte, error) {
	start := bytes.Index(out, []byte("<?xml"))
	if start < 0 {
		start = bytes.Index(out, []byte("<hierarchy"))
	}
	end := bytes.LastIndex(out, []byte(hierarchyEnd))
	if start < 0 || end < start {
		return nil, wrap("adb", fmt.Errorf("%w: no hierarchy in dump output", ErrStale))
	}
	return out[start : end+len(hierarchyEnd)], nil
}

func (d *ADB) Tap(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.shell.Run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return wrap("adb", err)
}

func (d *ADB) Swipe(ctx context.Context, s Swipe) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := d.shell.Run(ctx, "shell", "input", "swipe",
		strconv.Itoa(s.FromX), strconv.Itoa(s.FromY),
		strconv.Itoa(s.ToX), strconv.Itoa(s.ToY),
		strconv.FormatInt(s.Duration.Milliseconds(), 10))
	return wrap("adb", err)
}

func (d *ADB) Press(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	code, ok := keycodes[key]
	if !ok {
		return wrap("adb", fmt.Errorf("unsupported key %q", key))
	}
	_, err := d.shell.Run(ctx, "shell", "input", "keyevent", strconv.Itoa(code))
	return wrap("adb", err)
}

func (d *ADB) Screenshot(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	png, err := d.shell.Run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return wrap("adb", fmt.Errorf("screencap: %w", err))
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

func (d *ADB) Close() error { return nil }
