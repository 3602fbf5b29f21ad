package log

import (
	"io"
	"os"
	"sync"

	"github.com/sagernet/sing/common"
)

// Output is one local sink. Write is invoked only for events that passed
// level gating and the sink's rate limiter.
type Output interface {
	Write(event *Event) error
	Close() error
}

// Starter is implemented by outputs that need setup before the first write,
// such as opening a log file.
type Starter interface {
	Start() error
}

var (
	_ Output  = (*TextOutput)(nil)
	_ Starter = (*TextOutput)(nil)
	_ Output  = (*JSONOutput)(nil)
	_ Starter = (*JSONOutput)(nil)
)

// TextOutput writes formatted text lines to a writer or file. Writes are
// serialized per output; a slow destination delays other emitters sharing
// this sink, which is accepted back-pressure.
type TextOutput struct {
	formatter TextFormatter
	access    sync.Mutex
	writer    io.Writer
	file      *os.File
	filePath  string
}

func NewTextOutput(config FormatConfig, writer io.Writer, filePath string) *TextOutput {
	return &TextOutput{
		formatter: TextFormatter{Config: config},
		writer:    writer,
		filePath:  filePath,
	}
}

func (o *TextOutput) Start() error {
	if o.filePath != "" && o.writer == nil {
		file, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		o.file = file
		o.writer = file
	}
	return nil
}

func (o *TextOutput) Write(event *Event) error {
	if o.writer == nil {
		return nil
	}
	content := o.formatter.Format(event)
	o.access.Lock()
	defer o.access.Unlock()
	_, err := o.writer.Write(content)
	return err
}

func (o *TextOutput) Close() error {
	return common.Close(common.PtrOrNil(o.file))
}

// JSONOutput writes one JSON document per line to a writer or file.
type JSONOutput struct {
	formatter JSONFormatter
	access    sync.Mutex
	writer    io.Writer
	file      *os.File
	filePath  string
}

func NewJSONOutput(config FormatConfig, writer io.Writer, filePath string) *JSONOutput {
	return &JSONOutput{
		formatter: JSONFormatter{Config: config},
		writer:    writer,
		filePath:  filePath,
	}
}

func (o *JSONOutput) Start() error {
	if o.filePath != "" && o.writer == nil {
		file, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		o.file = file
		o.writer = file
	}
	return nil
}

func (o *JSONOutput) Write(event *Event) error {
	if o.writer == nil {
		return nil
	}
	content, err := o.formatter.Format(event)
	if err != nil {
		return err
	}
	o.access.Lock()
	defer o.access.Unlock()
	_, err = o.writer.Write(content)
	return err
}

func (o *JSONOutput) Close() error {
	return common.Close(common.PtrOrNil(o.file))
}
