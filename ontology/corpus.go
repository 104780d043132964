package ontology

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrMalformedCorpus wraps every decoding failure of a YAML corpus.
var ErrMalformedCorpus = errors.New("malformed ontology corpus")

var builtinPrefixes = map[string]string{
	"owl": "http://www.w3.org/2002/07/owl#",
}

type corpusFile struct {
	Name     string            `yaml:"name"`
	Prefixes map[string]string `yaml:"prefixes,omitempty"`
	Axioms   []yaml.Node       `yaml:"axioms"`
}

// LoadFile reads a YAML corpus from path.
func LoadFile(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read corpus %s", path)
	}
	o, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "corpus %s", path)
	}
	return o, nil
}

// Parse decodes a YAML corpus.
func Parse(data []byte) (*Ontology, error) {
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to parse YAML corpus"), ErrMalformedCorpus)
	}

	d := decoder{prefixes: make(map[string]string)}
	for k, v := range builtinPrefixes {
		d.prefixes[k] = v
	}
	for k, v := range f.Prefixes {
		d.prefixes[k] = v
	}

	o := &Ontology{Name: f.Name}
	for i := range f.Axioms {
		ax, err := d.axiom(&f.Axioms[i])
		if err != nil {
			return nil, errors.Wrapf(err, "axiom %d", i)
		}
		o.Add(ax...)
	}
	return o, nil
}

type decoder struct {
	prefixes map[string]string
}

func (d decoder) fail(n *yaml.Node, format string, args ...interface{}) error {
	err := errors.Newf(format, args...)
	err = errors.Wrapf(err, "line %d", n.Line)
	return errors.Mark(err, ErrMalformedCorpus)
}

func (d decoder) expand(name string) string {
	if strings.Contains(name, "://") || strings.HasPrefix(name, "urn:") {
		return name
	}
	if i := strings.Index(name, ":"); i > 0 {
		if base, ok := d.prefixes[name[:i]]; ok {
			return base + name[i+1:]
		}
	}
	return name
}

// single returns the key and value of a one-entry mapping.
func (d decoder) single(n *yaml.Node) (string, *yaml.Node, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return "", nil, d.fail(n, "expected a mapping with exactly one key")
	}
	return n.Content[0].Value, n.Content[1], nil
}

func (d decoder) axiom(n *yaml.Node) ([]Axiom, error) {
	key, val, err := d.single(n)
	if err != nil {
		return nil, err
	}

	switch key {
	case "subclass":
		var sub, super *yaml.Node
		if val.Kind != yaml.MappingNode {
			return nil, d.fail(val, "subclass expects {sub, super}")
		}
		for i := 0; i+1 < len(val.Content); i += 2 {
			switch val.Content[i].Value {
			case "sub":
				sub = val.Content[i+1]
			case "super":
				super = val.Content[i+1]
			}
		}
		if sub == nil || super == nil {
			return nil, d.fail(val, "subclass requires both sub and super")
		}
		l, err := d.expr(sub)
		if err != nil {
			return nil, err
		}
		r, err := d.expr(super)
		if err != nil {
			return nil, err
		}
		return []Axiom{Sub(l, r)}, nil

	case "equivalent", "disjoint":
		exprs, err := d.list(val)
		if err != nil {
			return nil, err
		}
		if len(exprs) < 2 {
			return nil, d.fail(val, "%s needs at least two expressions", key)
		}
		if key == "equivalent" {
			return []Axiom{Equivalent(exprs...)}, nil
		}
		return []Axiom{Disjoint(exprs...)}, nil
	}
	return nil, d.fail(n, "unknown axiom type %q", key)
}

func (d decoder) list(n *yaml.Node) ([]Expr, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, d.fail(n, "expected a list of expressions")
	}
	out := make([]Expr, 0, len(n.Content))
	for _, c := range n.Content {
		e, err := d.expr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (d decoder) restriction(n *yaml.Node) (string, Expr, error) {
	if n.Kind != yaml.MappingNode {
		return "", Expr{}, d.fail(n, "restriction expects {role, filler}")
	}
	var role string
	var filler *yaml.Node
	for i := 0; i+1 < len(n.Content); i += 2 {
		switch n.Content[i].Value {
		case "role":
			role = d.expand(n.Content[i+1].Value)
		case "filler":
			filler = n.Content[i+1]
		}
	}
	if role == "" || filler == nil {
		return "", Expr{}, d.fail(n, "restriction requires role and filler")
	}
	e, err := d.expr(filler)
	return role, e, err
}

func (d decoder) expr(n *yaml.Node) (Expr, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind == yaml.ScalarNode {
		if n.Value == "" {
			return Expr{}, d.fail(n, "empty class name")
		}
		return Class(d.expand(n.Value)), nil
	}

	key, val, err := d.single(n)
	if err != nil {
		return Expr{}, err
	}
	switch key {
	case "and", "or":
		ops, err := d.list(val)
		if err != nil {
			return Expr{}, err
		}
		if len(ops) == 0 {
			return Expr{}, d.fail(val, "%s of nothing", key)
		}
		if key == "and" {
			return And(ops...), nil
		}
		return Or(ops...), nil
	case "not":
		x, err := d.expr(val)
		if err != nil {
			return Expr{}, err
		}
		return Not(x), nil
	case "some", "only":
		role, filler, err := d.restriction(val)
		if err != nil {
			return Expr{}, err
		}
		if key == "some" {
			return Some(role, filler), nil
		}
		return Only(role, filler), nil
	}
	return Expr{}, d.fail(n, "unknown constructor %q", key)
}

// Write encodes o as a YAML corpus readable by Parse.
func Write(w io.Writer, o *Ontology) error {
	type restriction struct {
		Role   string      `yaml:"role"`
		Filler interface{} `yaml:"filler"`
	}
	var encode func(e Expr) interface{}
	encode = func(e Expr) interface{} {
		switch e.Op {
		case OpClass, OpThing, OpNothing:
			return e.IRI
		case OpAnd, OpOr:
			ops := make([]interface{}, len(e.Operands))
			for i, x := range e.Operands {
				ops[i] = encode(x)
			}
			if e.Op == OpAnd {
				return map[string]interface{}{"and": ops}
			}
			return map[string]interface{}{"or": ops}
		case OpNot:
			return map[string]interface{}{"not": encode(e.Operands[0])}
		case OpSome:
			return map[string]interface{}{"some": restriction{Role: e.Role, Filler: encode(e.Filler())}}
		case OpOnly:
			return map[string]interface{}{"only": restriction{Role: e.Role, Filler: encode(e.Filler())}}
		}
		return nil
	}

	axioms := make([]interface{}, 0, len(o.Axioms))
	for _, a := range o.Axioms {
		exprs := make([]interface{}, len(a.Exprs))
		for i, e := range a.Exprs {
			exprs[i] = encode(e)
		}
		switch a.Type {
		case SubClassOf:
			axioms = append(axioms, map[string]interface{}{
				"subclass": map[string]interface{}{"sub": exprs[0], "super": exprs[1]},
			})
		case EquivalentClasses:
			axioms = append(axioms, map[string]interface{}{"equivalent": exprs})
		case DisjointClasses:
			axioms = append(axioms, map[string]interface{}{"disjoint": exprs})
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]interface{}{"name": o.Name, "axioms": axioms}); err != nil {
		return errors.Wrap(err, "failed to encode corpus")
	}
	return enc.Close()
}
