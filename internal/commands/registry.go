package commands

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
)

// quote-aware split: game "Rocket League"
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// Extension is a named group of commands.
type Extension struct {
	Name     string
	Commands []*Command
}

// Factory builds an extension when it is loaded.
type Factory func() (*Extension, error)

// ExtensionNotFound: no factory is registered under the name.
type ExtensionNotFound struct {
	Name string
}

func (e *ExtensionNotFound) Error() string {
	return fmt.Sprintf("no extension named '%s'", e.Name)
}

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	loaded    []string
	commands  map[string]*Command // names and aliases, lower-cased
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		commands:  make(map[string]*Command),
	}
}

// Register makes an extension available to Load.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Load loads every named extension independently. A failure is logged as a
// warning and the remaining names are still loaded. Returns the names that
// loaded.
func (r *Registry) Load(names []string, log *slog.Logger) []string {
	var ok []string
	for _, name := range names {
		if err := r.load(name); err != nil {
			log.Warn(fmt.Sprintf("Failed to load extension %s\n%s", name, Summary(err)))
			continue
		}
		ok = append(ok, name)
	}
	return ok
}

func (r *Registry) load(name string) (err error) {
	r.mu.RLock()
	f, found := r.factories[name]
	r.mu.RUnlock()
	if !found {
		return &ExtensionNotFound{Name: name}
	}

	defer func() {
		if p := recover(); p != nil {
			err = &Panic{Value: p}
		}
	}()
	ext, err := f()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range ext.Commands {
		r.commands[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			r.commands[strings.ToLower(a)] = c
		}
	}
	r.loaded = append(r.loaded, name)
	return nil
}

// Extensions lists loaded extension names in load order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.loaded...)
}

// Commands lists top-level commands sorted by name, aliases collapsed.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[*Command]bool)
	var out []*Command
	for _, c := range r.commands {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Match resolves content against the prefixes. ok is false when no prefix
// matches. When a prefix matches but no command does, err is a
// *CommandNotFound.
func (r *Registry) Match(prefixes []string, content string) (inv *Invocation, ok bool, err error) {
	prefix := longestPrefix(prefixes, content)
	if prefix == "" {
		return nil, false, nil
	}

	fields := splitArgs(content[len(prefix):])
	if len(fields) == 0 {
		return nil, true, &CommandNotFound{Name: ""}
	}

	r.mu.RLock()
	cmd := r.commands[strings.ToLower(fields[0])]
	r.mu.RUnlock()
	if cmd == nil {
		return nil, true, &CommandNotFound{Name: fields[0]}
	}

	args := fields[1:]
	for len(args) > 0 {
		sub := cmd.subs[strings.ToLower(args[0])]
		if sub == nil {
			break
		}
		cmd, args = sub, args[1:]
	}
	return &Invocation{Command: cmd, Prefix: prefix, Args: args}, true, nil
}

// Invoke runs inv.Command. Guild-only commands invoked outside a guild fail
// with *NoPrivateMessage. Handler errors and panics become
// *CommandInvokeError, except *BadArgument which passes through.
func Invoke(ctx context.Context, inv *Invocation) (err error) {
	cmd := inv.Command
	if cmd.guildOnly() && inv.Channel.IsPrivate() {
		return &NoPrivateMessage{Command: cmd.QualifiedName()}
	}
	if cmd.Run == nil {
		return &BadArgument{Usage: usage(inv.Prefix, cmd)}
	}

	defer func() {
		if p := recover(); p != nil {
			err = newInvokeError(cmd, &Panic{Value: p}, debug.Stack())
		}
	}()
	if err := cmd.Run(ctx, inv); err != nil {
		if ba, ok := err.(*BadArgument); ok {
			return ba
		}
		return newInvokeError(cmd, err, nil)
	}
	return nil
}

func usage(prefix string, cmd *Command) string {
	names := make([]string, 0, len(cmd.subs))
	seen := make(map[*Command]bool)
	for _, s := range cmd.subs {
		if !seen[s] {
			seen[s] = true
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return fmt.Sprintf("%s%s <%s>", prefix, cmd.QualifiedName(), strings.Join(names, "|"))
}

func longestPrefix(prefixes []string, content string) string {
	best := ""
	for _, p := range prefixes {
		if p != "" && len(p) > len(best) && strings.HasPrefix(content, p) {
			best = p
		}
	}
	return best
}

func splitArgs(s string) []string {
	var out []string
	for _, m := range reArg.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
