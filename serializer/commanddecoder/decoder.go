// Package commanddecoder turns JSON commands into action callbacks and JSON
// desired-property documents into writes against a device's memory image,
// both guided by a schema model.
//
// A Decoder is not safe for concurrent use, and the memory handed to
// IngestDesiredProperties must not be touched by anyone else while it runs.
package commanddecoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"azure-iot-serializer/serializer/agenttypes"
	"azure-iot-serializer/serializer/multitree"
	"azure-iot-serializer/serializer/schema"
)

// DefaultMaxDepth bounds struct-in-struct and model-in-model recursion.
const DefaultMaxDepth = 32

var (
	ErrInvalidArg       = errors.New("commanddecoder: invalid argument")
	ErrClosed           = errors.New("commanddecoder: decoder closed")
	ErrInvalidName      = errors.New("commanddecoder: invalid action name")
	ErrEmptyStruct      = errors.New("commanddecoder: struct type with 0 members is not allowed")
	ErrTooDeep          = errors.New("commanddecoder: nesting too deep")
	ErrNoActionCallback = errors.New("commanddecoder: no action callback")
	ErrNotDesired       = errors.New("commanddecoder: element cannot be ingested as a desired property")
	ErrUnknownElement   = errors.New("commanddecoder: unknown element")
	ErrNoSchema         = errors.New("commanddecoder: model has no schema")
	ErrNoWriter         = errors.New("commanddecoder: desired property has no writer")
)

// Result is the outcome of a command or an ingestion.
type Result int

const (
	Success Result = iota
	Failed
	Error
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// ActionFunc runs a decoded action. relativePath is the "/"-joined list of
// nested models traversed to reach the action, empty for the root model.
// args follow the schema's argument order and are released once it returns.
type ActionFunc func(ctx any, relativePath, action string, args []agenttypes.Value) Result

// ValueCodec builds and releases values. FromMembers takes ownership of values
// when it succeeds; on failure they still belong to the caller.
type ValueCodec interface {
	PrimitiveKind(typeName string) agenttypes.Kind
	FromString(raw string, kind agenttypes.Kind) (agenttypes.Value, error)
	FromMembers(typeName string, names []string, values []agenttypes.Value) (agenttypes.Value, error)
	Release(v *agenttypes.Value)
}

type Decoder struct {
	model         *schema.Model
	action        ActionFunc
	actionCtx     any
	codec         ValueCodec
	log           zerolog.Logger
	maxDepth      int
	strictDesired bool
}

type Option func(*Decoder)

// WithContext sets the opaque value passed as the first callback argument.
func WithContext(ctx any) Option { return func(d *Decoder) { d.actionCtx = ctx } }

func WithCodec(c ValueCodec) Option { return func(d *Decoder) { d.codec = c } }

func WithLogger(l zerolog.Logger) Option { return func(d *Decoder) { d.log = l } }

func WithMaxDepth(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxDepth = n
		}
	}
}

// WithStrictDesiredProperties makes names unknown to the model fail ingestion
// instead of being skipped.
func WithStrictDesiredProperties() Option { return func(d *Decoder) { d.strictDesired = true } }

// New creates a decoder for model. A nil action callback is allowed; such a
// decoder can still ingest desired properties but every command is an Error.
func New(model *schema.Model, action ActionFunc, opts ...Option) (*Decoder, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidArg)
	}
	d := &Decoder{
		model:    model,
		action:   action,
		codec:    agenttypes.Codec{},
		log:      zerolog.Nop(),
		maxDepth: DefaultMaxDepth,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Close releases the decoder. It is safe on a nil or already closed decoder.
func (d *Decoder) Close() {
	if d == nil {
		return
	}
	d.model = nil
	d.action = nil
	d.actionCtx = nil
}

func (d *Decoder) usable() error {
	if d == nil {
		return fmt.Errorf("%w: nil decoder", ErrInvalidArg)
	}
	if d.model == nil {
		return ErrClosed
	}
	return nil
}

// ExecuteCommand decodes a command of the form
//
//	{"Name":"Child/Action","Parameters":{"Arg":value,...}}
//
// and invokes the action callback. Error means nothing was dispatched;
// otherwise the callback's own result is returned.
func (d *Decoder) ExecuteCommand(command string) Result {
	if err := d.usable(); err != nil {
		return Error
	}
	if command == "" {
		d.log.Error().Msg("command text is empty")
		return Error
	}
	tree, err := multitree.FromJSON(command)
	if err != nil {
		d.log.Error().Err(err).Msg("decoding command JSON failed")
		return Error
	}
	res, err := d.decodeCommand(tree)
	if err != nil {
		d.log.Error().Err(err).Msg("command rejected")
		return Error
	}
	return res
}

func (d *Decoder) decodeCommand(root *multitree.Tree) (Result, error) {
	s := d.model.Schema()
	if s == nil {
		return Error, ErrNoSchema
	}
	nameNode, err := root.ChildByName("Name")
	if err != nil {
		return Error, fmt.Errorf("getting action name: %w", err)
	}
	raw, err := nameNode.Value()
	if err != nil {
		return Error, fmt.Errorf("getting action name: %w", err)
	}
	path, err := actionPath(raw)
	if err != nil {
		return Error, err
	}
	model, relPath, actionName, err := d.scanActionPath(path)
	if err != nil {
		return Error, err
	}
	return d.decodeAndExecute(s, model, relPath, actionName, root)
}

// actionPath unwraps the Name leaf. The leaf is a JSON string token; a name
// that was itself sent pre-quoted loses that extra pair of quotes too.
func actionPath(raw string) (string, error) {
	if len(raw) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, raw)
	}
	path, err := multitree.Unquote(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if len(path) >= 2 && path[0] == '"' && path[len(path)-1] == '"' {
		path = path[1 : len(path)-1]
	}
	return path, nil
}

// scanActionPath walks every "/"-terminated segment as a nested model name and
// returns the model reached, the traversed path and the trailing action name.
func (d *Decoder) scanActionPath(path string) (*schema.Model, string, string, error) {
	model := d.model
	rest := path
	depth := 0
	for {
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			break
		}
		depth++
		if depth > d.maxDepth {
			return nil, "", "", fmt.Errorf("%w: action path %q", ErrTooDeep, path)
		}
		child, err := model.ChildModel(rest[:i])
		if err != nil {
			return nil, "", "", fmt.Errorf("resolving action path %q: %w", path, err)
		}
		model = child
		rest = rest[i+1:]
	}
	if rest == "" {
		return nil, "", "", fmt.Errorf("%w: %q has no action", ErrInvalidName, path)
	}
	rel := strings.TrimSuffix(path[:len(path)-len(rest)], "/")
	return model, rel, rest, nil
}

func (d *Decoder) decodeAndExecute(s *schema.Schema, model *schema.Model, relPath, actionName string, root *multitree.Tree) (Result, error) {
	action, err := model.Action(actionName)
	if err != nil {
		return Error, err
	}
	params, err := root.ChildByName("Parameters")
	if err != nil {
		return Error, fmt.Errorf("getting Parameters: %w", err)
	}

	args := newOwned(d.codec, action.ArgumentCount())
	defer args.release()

	for i := 0; i < action.ArgumentCount(); i++ {
		arg, err := action.Argument(i)
		if err != nil {
			return Error, err
		}
		node, err := params.ChildByName(arg.Name)
		if err != nil {
			return Error, fmt.Errorf("missing argument %s: %w", arg.Name, err)
		}
		v, err := d.decodeValue(s, node, arg.Type, 0)
		if err != nil {
			return Error, fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		args.add(v)
	}

	if d.action == nil {
		return Error, ErrNoActionCallback
	}
	d.log.Debug().Str("path", relPath).Str("action", actionName).Int("args", len(args.vals)).Msg("dispatching action")
	return d.action(d.actionCtx, relPath, actionName, args.vals), nil
}
