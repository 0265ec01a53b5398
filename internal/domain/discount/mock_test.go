package discount

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- Mock implementations ---

type testItem struct {
	id          int64
	regular     *decimal.Decimal
	current     decimal.Decimal
	contentType string
	terms       map[string][]TermID
}

func newItem(id int64, regular string) *testItem {
	it := &testItem{id: id, contentType: "product", terms: map[string][]TermID{}}
	if regular != "" {
		r := d(regular)
		it.regular = &r
		it.current = r
	}
	return it
}

func (i *testItem) with(ns string, terms ...TermID) *testItem {
	i.terms[ns] = append(i.terms[ns], terms...)
	return i
}

func (i *testItem) ItemID() int64 { return i.id }

func (i *testItem) RegularPrice() (decimal.Decimal, bool) {
	if i.regular == nil {
		return decimal.Zero, false
	}
	return *i.regular, true
}

func (i *testItem) CurrentPrice() decimal.Decimal     { return i.current }
func (i *testItem) ContentType() string               { return i.contentType }
func (i *testItem) TermIDs(namespace string) []TermID { return i.terms[namespace] }

type mockTaxonomy struct {
	namespaces map[string]string
	terms      map[Selector]string
	err        error
}

func newTaxonomy(namespaces ...string) *mockTaxonomy {
	m := &mockTaxonomy{namespaces: map[string]string{}, terms: map[Selector]string{}}
	for _, ns := range namespaces {
		m.namespaces[ns] = ns
	}
	return m
}

func (m *mockTaxonomy) term(ns string, id TermID, name string) *mockTaxonomy {
	m.terms[Selector{Namespace: ns, Term: id}] = name
	return m
}

func (m *mockTaxonomy) NamespaceExists(_ context.Context, namespace string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.namespaces[namespace]
	return ok, nil
}

func (m *mockTaxonomy) LookupTerm(_ context.Context, namespace string, id TermID) (Term, bool, error) {
	if m.err != nil {
		return Term{}, false, m.err
	}
	name, ok := m.terms[Selector{Namespace: namespace, Term: id}]
	if !ok {
		return Term{}, false, nil
	}
	return Term{Namespace: namespace, NamespaceLabel: m.namespaces[namespace], ID: id, Name: name}, true, nil
}

// mockRepo is an in-memory Repository that orders like the real stores.
type mockRepo struct {
	mu      sync.Mutex
	rules   []Rule
	nextID  int64
	err     error
	created []*Rule
}

func (m *mockRepo) ActiveByPriority(_ context.Context) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []Rule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b Rule) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.nextID++
	rule.ID = m.nextID
	m.rules = append(m.rules, *rule)
	m.created = append(m.created, rule)
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = slices.Delete(m.rules, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepo) SetActive(_ context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules[i].Active = active
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockRepo) List(_ context.Context) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.rules)
	slices.Reverse(out)
	return out, nil
}

// --- Helpers ---

func (m *mockRepo) add(rule Rule) Rule {
	m.nextID++
	if rule.ID == 0 {
		rule.ID = m.nextID
	}
	rule.Active = true
	m.rules = append(m.rules, rule)
	return rule
}

func pct(v string, target Target, priority int) Rule {
	return Rule{Name: "pct " + v, DiscountType: Percentage, Value: d(v), Target: target, Priority: priority}
}

func fixed(v string, target Target, priority int) Rule {
	return Rule{Name: "fixed " + v, DiscountType: Fixed, Value: d(v), Target: target, Priority: priority}
}

func category(id TermID) Target {
	return CategoryTarget{Selector: Selector{Namespace: CategoryNamespace, Term: id}}
}

func tag(id TermID) Target {
	return TagTarget{Selector: Selector{Namespace: TagNamespace, Term: id}}
}
