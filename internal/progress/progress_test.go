package progress

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cs2interlink/cs2-int/internal/events"
)

func TestTee(t *testing.T) {
	var got []string
	fn := Tee(
		func(m string, f float64) { got = append(got, "a:"+m) },
		nil,
		func(m string, f float64) { got = append(got, "b:"+m) },
	)
	fn("x", 0.5)
	if strings.Join(got, ",") != "a:x,b:x" {
		t.Errorf("Unexpected calls %v", got)
	}
}

func TestBus(t *testing.T) {
	bus := events.NewEventBus(4)
	defer bus.Close()
	ch := bus.Subscribe(events.EventProgress)

	Bus(bus, "store")("Storing Items (1/2)", 0.5)

	select {
	case ev := <-ch:
		pe, ok := ev.(*events.ProgressEvent)
		if !ok {
			t.Fatalf("Expected ProgressEvent, got %T", ev)
		}
		if pe.Operation != "store" || pe.Message != "Storing Items (1/2)" || pe.Progress != 0.5 {
			t.Errorf("Unexpected event %+v", pe)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected a progress event")
	}
}

func TestBarWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	b := NewBar(&buf, 2, "Storing Items")
	b.Update("Storing Items (1/2)", 0.5)
	b.Update("Storing Items (1/2)", 0.5)
	b.Update("Storing Items (2/2)", 1)
	b.Finish()
	b.Abort(errors.New("boom"))

	want := "Storing Items\nStoring Items (1/2)\nStoring Items (2/2)\nError: boom\n"
	if buf.String() != want {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestLoadingUIWithoutTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	u := NewLoadingUI(f, "Loading Inventory")
	if IsTerminal(f) {
		t.Fatal("Expected a regular file not to be a terminal")
	}
	u.Update("Loading Storage Unit Contents (1/2)", 0.5)
	u.Update("Loading Storage Unit Contents (1/2)", 0.5)
	u.Done(nil)
	u.Done(errors.New("ignored"))
	if u.Writer() != f {
		t.Error("Expected writer to be the output file")
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "Loading Inventory\nLoading Storage Unit Contents (1/2)\n" {
		t.Errorf("Unexpected output %q", data)
	}
}
