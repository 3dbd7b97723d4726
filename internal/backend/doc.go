// Package backend provides an HTTP client for the work-order backend.
//
// # Overview
//
// The backend exposes three APIs behind one base URL:
//
//   - /auth/v1: password sign-in and current-user lookup
//   - /rest/v1: work_orders and work_order_attachments tables (PostgREST)
//   - /storage/v1: the private "workorders" object bucket
//
// Every request carries the project's anon key in the apikey header. Calls
// made on behalf of a technician also carry "Authorization: Bearer <token>".
//
// # Client Usage
//
//	client, err := backend.NewClient(cfg.APIURL, cfg.AnonKey)
//	if err != nil {
//		return err
//	}
//	session, err := client.SignIn(ctx, email, password)
//	orders, err := client.FetchWorkOrders(ctx, session.AccessToken)
//	err = client.UpdateWorkOrder(ctx, session.AccessToken, id, workorder.StatusCompleted, "replaced filter")
//
// # Error Handling
//
// Errors are apperr values so callers can branch on the code:
//
//   - 401 responses: apperr.Unauthorized
//   - network failures, timeouts and any other non-2xx: apperr.Transport
//   - malformed JSON: apperr.Decode
//
// The sync engine queues updates on Transport and surfaces Unauthorized.
//
// # Attachments
//
// UploadAttachment inserts the metadata row before uploading the object
// because the bucket's policy only accepts paths that have a row. When the
// object upload fails the row is deleted again so the list stays clean.
package backend
