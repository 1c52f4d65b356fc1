package notify

import (
	"fmt"
	"io"
	"sync"
)

// Console prints the readout in the CLI's "[*]" status style, one line per
// visible change.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	readout Readout
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Start() {
	c.readout.Reset()
	c.println("[*] " + c.readout.String())
}

func (c *Console) Progress(fraction float64) {
	if _, changed := c.readout.Update(fraction); changed {
		c.println("[>] " + c.readout.String())
	}
}

func (c *Console) Complete(r Result) {
	if r.Err != nil {
		c.println(fmt.Sprintf("[!] Ошибка экспорта: %v", r.Err))
		return
	}
	c.println(fmt.Sprintf("[+++] Успех! Кадров: %d, результат: %s", r.Frames, r.Output))
}

// Text returns the current readout.
func (c *Console) Text() string {
	return c.readout.String()
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, s)
}
