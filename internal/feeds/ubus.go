package feeds

import (
	"context"
	"encoding/json"
	"fmt"
)

const ubusBinary = "ubus"

// Ubus issues "ubus call <object> <method> <json>" through a CommandRunner.
type Ubus struct {
	runner CommandRunner
}

// NewUbus returns a client over runner.
func NewUbus(runner CommandRunner) *Ubus {
	return &Ubus{runner: runner}
}

// Call invokes method on object and decodes the JSON reply into out.
// args may be nil.
func (u *Ubus) Call(ctx context.Context, object, method string, args, out any) error {
	cmdArgs := []string{"call", object, method}

	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("ubus %s %s: encode args: %w", object, method, err)
		}

		cmdArgs = append(cmdArgs, string(b))
	}

	raw, err := u.runner.Run(ctx, ubusBinary, cmdArgs...)
	if err != nil {
		return err
	}

	if out == nil || len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ubus %s %s: decode reply: %w", object, method, err)
	}

	return nil
}
