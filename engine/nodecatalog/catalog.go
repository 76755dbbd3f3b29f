package nodecatalog

import (
	"log"
	"sort"
	"sync"

	"github.com/Abraxas-365/converso/engine"
)

// Registry implementación en memoria del catálogo de nodos. Los tipos se
// registran al armar el contenedor; el ejecutor solo resuelve por key.
type Registry struct {
	mu        sync.RWMutex
	behaviors map[string]engine.NodeBehavior
}

var _ engine.Catalog = (*Registry)(nil)

// NewRegistry crea un catálogo con los comportamientos dados
func NewRegistry(behaviors ...engine.NodeBehavior) *Registry {
	r := &Registry{behaviors: make(map[string]engine.NodeBehavior)}
	for _, b := range behaviors {
		r.Register(b)
	}
	return r
}

// Register registra un comportamiento bajo el key de su definición
func (r *Registry) Register(behavior engine.NodeBehavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := behavior.Definition().Key
	r.behaviors[key] = behavior
	log.Printf("✅ Registered node behavior: %s", key)
}

// Resolve obtiene el comportamiento para un key de tipo de nodo
func (r *Registry) Resolve(key string) (engine.NodeBehavior, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	behavior, ok := r.behaviors[key]
	if !ok {
		return nil, engine.ErrBehaviorNotFound().WithDetail("node_definition_key", key)
	}
	return behavior, nil
}

// Definitions lista las entradas del catálogo ordenadas por key
func (r *Registry) Definitions() []engine.NodeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]engine.NodeDefinition, 0, len(r.behaviors))
	for _, b := range r.behaviors {
		defs = append(defs, b.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

func configString(config map[string]any, key, fallback string) string {
	if val, ok := config[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func configBool(config map[string]any, key string, fallback bool) bool {
	if val, ok := config[key].(bool); ok {
		return val
	}
	return fallback
}

func configInt(config map[string]any, key string, fallback int) int {
	switch val := config[key].(type) {
	case int:
		return val
	case float64:
		// JSON deserializa números como float64
		return int(val)
	}
	return fallback
}

func configStrings(config map[string]any, key string) []string {
	switch val := config[key].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
