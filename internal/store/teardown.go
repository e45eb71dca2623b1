package store

import "context"

// wipeStatements tears the chat schema down children-first: policies, then
// RLS, then the trigger and functions, then tables. The users table and the
// migration bookkeeping survive; a fresh `migrate up` reinstalls everything.
var wipeStatements = []string{
	`DROP POLICY IF EXISTS chat_instances_select ON chat_instances`,
	`DROP POLICY IF EXISTS chat_instances_insert ON chat_instances`,
	`DROP POLICY IF EXISTS chat_instances_update ON chat_instances`,
	`DROP POLICY IF EXISTS chat_instances_delete ON chat_instances`,
	`DROP POLICY IF EXISTS chat_messages_owner ON chat_messages`,
	`DROP POLICY IF EXISTS email_drafts_owner ON email_drafts`,
	`DROP POLICY IF EXISTS action_plans_owner ON action_plans`,
	`DROP POLICY IF EXISTS telemetry_events_owner ON telemetry_events`,

	`ALTER TABLE IF EXISTS telemetry_events DISABLE ROW LEVEL SECURITY`,
	`ALTER TABLE IF EXISTS action_plans DISABLE ROW LEVEL SECURITY`,
	`ALTER TABLE IF EXISTS email_drafts DISABLE ROW LEVEL SECURITY`,
	`ALTER TABLE IF EXISTS chat_messages DISABLE ROW LEVEL SECURITY`,
	`ALTER TABLE IF EXISTS chat_instances DISABLE ROW LEVEL SECURITY`,

	`DROP TRIGGER IF EXISTS chat_instances_touch_updated_at ON chat_instances`,
	`DROP FUNCTION IF EXISTS touch_updated_at()`,
	`DROP FUNCTION IF EXISTS current_user_id()`,

	`DROP TABLE IF EXISTS telemetry_events CASCADE`,
	`DROP TABLE IF EXISTS action_plans CASCADE`,
	`DROP TABLE IF EXISTS email_drafts CASCADE`,
	`DROP TABLE IF EXISTS chat_messages CASCADE`,
	`DROP TABLE IF EXISTS chat_instances CASCADE`,

	`DROP TABLE IF EXISTS schema_migrations`,
}

// Wipe destroys the chat schema. There is no migration path between schema
// versions; wipe-and-reinstall is the supported reset.
func (s *Store) Wipe(ctx context.Context) error {
	for _, stmt := range wipeStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
