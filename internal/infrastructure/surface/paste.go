package surface

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/turtacn/entitle/internal/domain/service"
)

// PasteProvider asks the user to open the sign-in address themselves and paste
// the address the browser ends up on. An empty line cancels.
//
// A single goroutine reads the input for the lifetime of the provider, so a
// prompt abandoned by its context does not swallow the line meant for the next one.
type PasteProvider struct {
	once   sync.Once
	reader *bufio.Reader
	lines  chan lineResult
	prompt io.Writer
}

func NewPasteProvider(in io.Reader, prompt io.Writer) *PasteProvider {
	return &PasteProvider{
		reader: bufio.NewReader(in),
		lines:  make(chan lineResult),
		prompt: prompt,
	}
}

func (p *PasteProvider) Acquire(context.Context) (service.InteractiveSurface, error) {
	p.once.Do(func() { go p.readLines() })
	return &pasteSurface{provider: p}, nil
}

// readLines feeds p.lines until the input fails, then closes it.
func (p *PasteProvider) readLines() {
	defer close(p.lines)
	for {
		line, err := p.reader.ReadString('\n')
		p.lines <- lineResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

type pasteSurface struct {
	provider *PasteProvider
}

type lineResult struct {
	line string
	err  error
}

func (s *pasteSurface) Navigate(ctx context.Context, initialURI string, redirectPrefix string) (service.SurfaceOutcome, error) {
	p := s.provider
	fmt.Fprintf(p.prompt, "Open the following address in a browser and sign in:\n\n  %s\n\n", initialURI)

	for {
		fmt.Fprint(p.prompt, "Paste the address you were redirected to (empty to cancel): ")

		var res lineResult
		select {
		case r, ok := <-p.lines:
			if !ok {
				return service.SurfaceOutcome{Cancelled: true}, nil
			}
			res = r
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return service.SurfaceOutcome{Cancelled: true}, nil
			}
			return service.SurfaceOutcome{}, ctx.Err()
		}

		line := strings.TrimSpace(res.line)
		if res.err != nil && res.err != io.EOF {
			return service.SurfaceOutcome{}, res.err
		}
		if line == "" {
			return service.SurfaceOutcome{Cancelled: true}, nil
		}
		if strings.HasPrefix(line, redirectPrefix) {
			return service.SurfaceOutcome{FinalURI: line}, nil
		}
		if res.err == io.EOF {
			return service.SurfaceOutcome{Cancelled: true}, nil
		}
		fmt.Fprintf(p.prompt, "That address does not start with %s.\n", redirectPrefix)
	}
}

func (s *pasteSurface) Close() error {
	return nil
}
