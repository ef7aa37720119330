// Package dispatch performs the actual campaign send: it resolves the
// audience, claims the campaign, materializes the send ledger, and delivers
// batches of email with pacing between them. A dispatch is resume safe. Every
// eligible contact gets exactly one ledger row and only pending rows are ever
// sent, so re-running a dispatch on a campaign stuck in sending picks up
// where the previous run stopped without duplicating delivered mail.
package dispatch
