package workorder

import "github.com/google/uuid"

// ApplyOverlay returns wo as it should be presented while pending is
// unconfirmed: status and notes come from the pending update and UpdatedAt is
// the time the edit was made. wo itself is not modified. An overlay for a
// different work order is ignored.
func ApplyOverlay(wo WorkOrder, pending PendingUpdate) WorkOrder {
	if pending.WorkOrderID != wo.ID {
		return wo
	}
	wo.Status = pending.Status
	wo.Description = pending.Notes
	wo.UpdatedAt = pending.EnqueuedAt
	return wo
}

// ApplyOverlays applies the matching overlay, if any, to every order and
// returns a new slice in the same order.
func ApplyOverlays(orders []WorkOrder, overlays map[uuid.UUID]PendingUpdate) []WorkOrder {
	if len(orders) == 0 {
		return nil
	}
	out := make([]WorkOrder, len(orders))
	for i, wo := range orders {
		if p, ok := overlays[wo.ID]; ok {
			out[i] = ApplyOverlay(wo, p)
			continue
		}
		out[i] = wo
	}
	return out
}
