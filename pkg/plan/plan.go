// Package plan computes the ordered operations that move deployed state from
// one assembly to the next. Executing them is the job of an external apply
// engine, described by the Applier interface.
package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jblukach/domains/pkg/graph"
	"github.com/jblukach/domains/pkg/stack"
)

// Action is what happens to a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionReplace Action = "replace"
	ActionDelete  Action = "delete"
)

// Operation is one step of a plan.
type Operation struct {
	Action Action     `json:"action"`
	Stack  string     `json:"stack"`
	ID     string     `json:"id"`
	Kind   graph.Kind `json:"kind"`

	// Changed lists the properties that differ, for updates and replaces
	Changed []string `json:"changed,omitempty"`
}

// Address returns "stack/id".
func (o Operation) Address() string {
	return o.Stack + "/" + o.ID
}

func (o Operation) String() string {
	if len(o.Changed) == 0 {
		return fmt.Sprintf("%s %s (%s)", o.Action, o.Address(), o.Kind)
	}
	return fmt.Sprintf("%s %s (%s) %v", o.Action, o.Address(), o.Kind, o.Changed)
}

// Plan is an ordered list of operations. Deletes come first, dependents before
// their dependencies; creates, updates and replaces follow in assembly order.
type Plan struct {
	Operations []Operation `json:"operations"`
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// Counts returns the number of operations per action.
func (p *Plan) Counts() map[Action]int {
	counts := make(map[Action]int, 4)
	for _, op := range p.Operations {
		counts[op.Action]++
	}
	return counts
}

// Applier executes a plan against the remote control plane. Failures are
// reported as *errdefs.RemoteApplyError; transient ones may be retried.
type Applier interface {
	Apply(ctx context.Context, p *Plan) error
}

type located struct {
	stack    string
	resource *stack.Resource
}

func index(a *stack.Assembly) ([]located, map[string]located) {
	if a == nil {
		return nil, map[string]located{}
	}
	var order []located
	byAddr := make(map[string]located)
	for i := range a.Stacks {
		s := &a.Stacks[i]
		for j := range s.Resources {
			l := located{stack: s.Name, resource: &s.Resources[j]}
			order = append(order, l)
			byAddr[s.Name+"/"+s.Resources[j].ID] = l
		}
	}
	return order, byAddr
}

// Diff compares prev (nil when nothing is deployed yet) with next. Identical
// assemblies produce an empty plan.
func Diff(ctx context.Context, prev, next *stack.Assembly) (*Plan, error) {
	tracer := otel.Tracer("domains")
	_, span := tracer.Start(ctx, "plan.Diff")
	defer span.End()

	prevOrder, prevByAddr := index(prev)
	nextOrder, nextByAddr := index(next)

	p := &Plan{}

	for i := len(prevOrder) - 1; i >= 0; i-- {
		old := prevOrder[i]
		addr := old.stack + "/" + old.resource.ID
		if _, ok := nextByAddr[addr]; !ok {
			p.Operations = append(p.Operations, Operation{
				Action: ActionDelete,
				Stack:  old.stack,
				ID:     old.resource.ID,
				Kind:   old.resource.Kind,
			})
		}
	}

	for _, cur := range nextOrder {
		addr := cur.stack + "/" + cur.resource.ID
		op := Operation{Stack: cur.stack, ID: cur.resource.ID, Kind: cur.resource.Kind}

		old, ok := prevByAddr[addr]
		switch {
		case !ok:
			op.Action = ActionCreate
		case old.resource.Kind != cur.resource.Kind:
			op.Action = ActionReplace
			op.Changed = []string{"kind"}
		default:
			changed, err := changedFields(old.resource, cur.resource)
			if err != nil {
				span.RecordError(err)
				return nil, fmt.Errorf("failed to compare %s: %w", addr, err)
			}
			if len(changed) == 0 {
				continue
			}
			op.Action = ActionUpdate
			op.Changed = changed
			immutable := graph.ImmutableProperties(cur.resource.Kind)
			for _, field := range changed {
				if slices.Contains(immutable, field) {
					op.Action = ActionReplace
					break
				}
			}
		}
		p.Operations = append(p.Operations, op)
	}

	counts := p.Counts()
	span.SetAttributes(
		attribute.Int("plan.create", counts[ActionCreate]),
		attribute.Int("plan.update", counts[ActionUpdate]),
		attribute.Int("plan.replace", counts[ActionReplace]),
		attribute.Int("plan.delete", counts[ActionDelete]),
	)
	return p, nil
}

// changedFields returns the sorted names of differing properties, plus "tags"
// and "depends_on" when those differ. Values are compared in their JSON form
// so that an assembly read back from a snapshot compares equal to a freshly
// synthesized one.
func changedFields(old, cur *stack.Resource) ([]string, error) {
	keys := make(map[string]bool, len(old.Properties)+len(cur.Properties))
	for k := range old.Properties {
		keys[k] = true
	}
	for k := range cur.Properties {
		keys[k] = true
	}

	var changed []string
	for k := range keys {
		oldV, oldOK := old.Properties[k]
		curV, curOK := cur.Properties[k]
		if oldOK != curOK {
			changed = append(changed, k)
			continue
		}
		same, err := sameJSON(oldV, curV)
		if err != nil {
			return nil, err
		}
		if !same {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)

	same, err := sameJSON(old.Tags, cur.Tags)
	if err != nil {
		return nil, err
	}
	if !same && (len(old.Tags) > 0 || len(cur.Tags) > 0) {
		changed = append(changed, "tags")
	}
	if !slices.Equal(old.DependsOn, cur.DependsOn) {
		changed = append(changed, "depends_on")
	}
	return changed, nil
}

func sameJSON(a, b any) (bool, error) {
	aj, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(aj, bj), nil
}
