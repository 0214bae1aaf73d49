package shell

import (
	"errors"
	"fmt"

	"github.com/chukul/capsulectl/internal"
	"github.com/chukul/capsulectl/internal/ui"
)

func (s *Shell) success(format string, args ...any) {
	s.p.Printf("✅ "+format+"\n", args...)
}

func (s *Shell) warn(format string, args ...any) {
	s.p.Printf("⚠️  "+format+"\n", args...)
}

func (s *Shell) hint(format string, args ...any) {
	s.p.Printf("💡 "+format+"\n", args...)
}

// fail prints err. Provider errors are shown by their message alone.
func (s *Shell) fail(action string, err error) {
	if errors.Is(err, ui.ErrCancelled) {
		s.p.Println("Cancelled.")
		return
	}
	msg := internal.ErrorMessage(err)
	if code := internal.ErrorCode(err); code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, code)
	}
	s.p.Printf("❌ %s: %s\n", action, msg)
}
