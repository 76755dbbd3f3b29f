package engine

import (
	"fmt"

	"github.com/Abraxas-365/converso/pkg/kernel"
)

// ============================================================================
// Publish-time Validation
// ============================================================================

// ValidationIssue un hallazgo de la validación estructural
type ValidationIssue struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	NodeID string `json:"node_id,omitempty"`
}

// ValidationReport resultado de validar un workflow para publicación.
// Errors rechazan la publicación; Warnings (nodos inalcanzables) no.
type ValidationReport struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// HasErrors indica si la publicación debe rechazarse
func (r *ValidationReport) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationReport) addError(code, detail string, nodeID kernel.NodeInstanceID) {
	r.Errors = append(r.Errors, ValidationIssue{Code: code, Detail: detail, NodeID: nodeID.String()})
}

func (r *ValidationReport) addWarning(code, detail string, nodeID kernel.NodeInstanceID) {
	r.Warnings = append(r.Warnings, ValidationIssue{Code: code, Detail: detail, NodeID: nodeID.String()})
}

// ValidateForPublish ejecuta los chequeos estructurales del grafo. Se
// verifica una sola vez al publicar: el runtime confía en un grafo publicado.
//
//  1. exactamente un nodo de entrada
//  2. todo nodo alcanzable desde la entrada (inalcanzable = warning)
//  3. transiciones del mismo origen no repiten prioridad salvo que a lo
//     más una sea incondicional
//  4. a lo más una transición default por nodo origen
//
// Los ciclos son válidos (los loops de reintento son intencionales); solo se
// exige alcanzabilidad, no aciclicidad.
func ValidateForPublish(wf *WorkflowDefinition) *ValidationReport {
	report := &ValidationReport{}

	if !wf.IsValid() {
		report.addError("INVALID_WORKFLOW", "workflow is missing key, tenant or nodes", "")
		return report
	}

	nodeIDs := make(map[kernel.NodeInstanceID]bool, len(wf.Nodes))
	instanceKeys := make(map[string]bool, len(wf.Nodes))
	var entryCount int
	var entryID kernel.NodeInstanceID

	for i := range wf.Nodes {
		node := &wf.Nodes[i]
		if node.ID.IsEmpty() {
			report.addError("NODE_WITHOUT_ID", fmt.Sprintf("node %q has no id", node.InstanceKey), "")
			continue
		}
		if nodeIDs[node.ID] {
			report.addError("DUPLICATE_NODE_ID", "duplicate node instance id", node.ID)
		}
		nodeIDs[node.ID] = true

		if node.InstanceKey == "" {
			report.addError("NODE_WITHOUT_KEY", "node instance has no instance key", node.ID)
		} else if instanceKeys[node.InstanceKey] {
			report.addError("DUPLICATE_INSTANCE_KEY", fmt.Sprintf("instance key %q repeated", node.InstanceKey), node.ID)
		}
		instanceKeys[node.InstanceKey] = true

		if node.IsEntryPoint {
			entryCount++
			entryID = node.ID
		}
	}

	if entryCount == 0 {
		report.addError("NO_ENTRY_NODE", "workflow has no entry node", "")
	} else if entryCount > 1 {
		report.addError("MULTIPLE_ENTRY_NODES", fmt.Sprintf("workflow has %d entry nodes", entryCount), "")
	}

	// Transiciones: referencias, prioridades y defaults por nodo origen
	type sourceStats struct {
		defaults        int
		unconditional   map[int]int // priority -> cuántas incondicionales
		priorityCounter map[int]int
	}
	perSource := make(map[kernel.NodeInstanceID]*sourceStats)

	for i := range wf.Transitions {
		t := &wf.Transitions[i]
		if !nodeIDs[t.SourceNodeInstanceID] {
			report.addError("DANGLING_TRANSITION", "transition source references non-existent node", t.SourceNodeInstanceID)
			continue
		}
		if !nodeIDs[t.TargetNodeInstanceID] {
			report.addError("DANGLING_TRANSITION", "transition target references non-existent node", t.TargetNodeInstanceID)
			continue
		}

		if t.Condition != nil {
			if err := t.Condition.Validate(); err != nil {
				report.addError("INVALID_CONDITION", err.Error(), t.SourceNodeInstanceID)
			}
		}

		stats := perSource[t.SourceNodeInstanceID]
		if stats == nil {
			stats = &sourceStats{unconditional: map[int]int{}, priorityCounter: map[int]int{}}
			perSource[t.SourceNodeInstanceID] = stats
		}
		if t.IsDefault {
			stats.defaults++
			continue // la default no participa del orden por prioridad
		}
		stats.priorityCounter[t.Priority]++
		if t.Condition == nil {
			stats.unconditional[t.Priority]++
		}
	}

	for sourceID, stats := range perSource {
		if stats.defaults > 1 {
			report.addError("MULTIPLE_DEFAULTS", fmt.Sprintf("%d default transitions from same source", stats.defaults), sourceID)
		}
		for priority, count := range stats.priorityCounter {
			// misma prioridad compartida solo es ambigua cuando más de una
			// de las transiciones empatadas es incondicional
			if count > 1 && stats.unconditional[priority] > 1 {
				report.addError("AMBIGUOUS_PRIORITY",
					fmt.Sprintf("%d unconditional transitions share priority %d", stats.unconditional[priority], priority),
					sourceID)
			}
		}
	}

	// Alcanzabilidad desde la entrada (BFS). Inalcanzable es warning de
	// configuración, no error de publicación.
	if entryCount == 1 {
		reached := make(map[kernel.NodeInstanceID]bool, len(wf.Nodes))
		queue := []kernel.NodeInstanceID{entryID}
		reached[entryID] = true
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			for _, t := range wf.Transitions {
				if t.SourceNodeInstanceID != current || reached[t.TargetNodeInstanceID] {
					continue
				}
				if !nodeIDs[t.TargetNodeInstanceID] {
					continue
				}
				reached[t.TargetNodeInstanceID] = true
				queue = append(queue, t.TargetNodeInstanceID)
			}
		}
		for i := range wf.Nodes {
			node := &wf.Nodes[i]
			if !node.ID.IsEmpty() && !reached[node.ID] {
				report.addWarning("UNREACHABLE_NODE",
					fmt.Sprintf("node %q is not reachable from the entry node", node.InstanceKey),
					node.ID)
			}
		}
	}

	return report
}
