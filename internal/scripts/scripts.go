// Package scripts stores reusable prompt templates under the Aria home.
//
// A script is a YAML file with a name, a prompt and a creation time. Prompt
// placeholders use {{name}} for caller-supplied values and {{env:VAR}} for
// environment variables.
package scripts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/aria/internal/navigator"
)

// ErrNotFound marks lookups of scripts that do not exist.
var ErrNotFound = errors.New("script not found")

var (
	namePattern        = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.-]*(?::[A-Za-z_]\w*)?)\s*\}\}`)
)

const envPrefix = "env:"

// Script is one stored prompt template.
type Script struct {
	Name      string    `yaml:"name" json:"name"`
	Prompt    string    `yaml:"prompt" json:"prompt"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Store keeps scripts as <dir>/<name>.yaml.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the scripts directory.
func (s *Store) Dir() string { return s.dir }

func scriptError(msg string, cause error) error {
	return navigator.NewError(navigator.CodeScript, msg, cause)
}

func (s *Store) path(name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", scriptError(fmt.Sprintf("invalid script name %q (letters, digits, '-' and '_' only)", name), nil)
	}
	return filepath.Join(s.dir, name+".yaml"), nil
}

// Create stores a new script. Existing names are not overwritten.
func (s *Store) Create(name, prompt string) (*Script, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, scriptError("script prompt is empty", nil)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, scriptError(fmt.Sprintf("script %q already exists", name), nil)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, scriptError("create scripts dir", err)
	}

	sc := &Script{Name: name, Prompt: prompt, CreatedAt: s.now().UTC().Truncate(time.Second)}
	data, err := yaml.Marshal(sc)
	if err != nil {
		return nil, scriptError("encode script", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*.yaml")
	if err != nil {
		return nil, scriptError("write script", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, scriptError("write script", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, scriptError("write script", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return nil, scriptError("write script", err)
	}
	return sc, nil
}

// Get loads the named script.
func (s *Store) Get(name string) (*Script, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, scriptError(fmt.Sprintf("script %q not found", name), ErrNotFound)
	}
	if err != nil {
		return nil, scriptError(fmt.Sprintf("read script %q", name), err)
	}
	var sc Script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, scriptError(fmt.Sprintf("malformed script %q", name), err)
	}
	if sc.Name == "" {
		sc.Name = name
	}
	return &sc, nil
}

// List returns every readable script sorted by name. Malformed files are
// skipped.
func (s *Store) List() ([]*Script, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, scriptError("list scripts", err)
	}
	var out []*Script
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".yaml")
		if e.IsDir() || !ok || !namePattern.MatchString(name) {
			continue
		}
		sc, err := s.Get(name)
		if err != nil {
			continue
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remove deletes the named script.
func (s *Store) Remove(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return scriptError(fmt.Sprintf("script %q not found", name), ErrNotFound)
		}
		return scriptError(fmt.Sprintf("remove script %q", name), err)
	}
	return nil
}

// Placeholders lists the caller-supplied placeholders in prompt, in order of
// first appearance. Environment placeholders are not included.
func Placeholders(prompt string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(prompt, -1) {
		name := m[1]
		if strings.HasPrefix(name, envPrefix) || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Apply fills prompt's placeholders from params and the environment.
func Apply(prompt string, params map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(prompt, func(tok string) string {
		name := placeholderPattern.FindStringSubmatch(tok)[1]
		if env, ok := strings.CutPrefix(name, envPrefix); ok {
			v, set := os.LookupEnv(env)
			if !set {
				missing = append(missing, name)
			}
			return v
		}
		v, ok := params[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", scriptError(fmt.Sprintf("missing values for placeholders: %s", strings.Join(dedup(missing), ", ")), nil)
	}
	return out, nil
}

// Missing lists the caller placeholders of prompt that params does not set.
func Missing(prompt string, params map[string]string) []string {
	var out []string
	for _, name := range Placeholders(prompt) {
		if _, ok := params[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// AskMissing writes a prompt to w for each placeholder params lacks and
// reads one answer line per placeholder from r into params. Running out of
// input leaves the rest unset.
func AskMissing(r io.Reader, w io.Writer, prompt string, params map[string]string) error {
	missing := Missing(prompt, params)
	if len(missing) == 0 {
		return nil
	}
	sc := bufio.NewScanner(r)
	for _, name := range missing {
		fmt.Fprintf(w, "Value for %s: ", name)
		if !sc.Scan() {
			fmt.Fprintln(w)
			if err := sc.Err(); err != nil {
				return scriptError("read placeholder values", err)
			}
			return nil
		}
		params[name] = strings.TrimSpace(sc.Text())
	}
	return nil
}

// ParseParams turns key=value arguments into a parameter map.
func ParseParams(args []string) (map[string]string, error) {
	params := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, scriptError(fmt.Sprintf("invalid parameter %q (want key=value)", arg), nil)
		}
		params[k] = v
	}
	return params, nil
}

func dedup(in []string) []string {
	seen := map[string]bool{}
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
