// Package deadline provides the business boundary for the plazos deadline
// engine. It defines the clock policy (pure remaining-time arithmetic), the
// Evaluator (snapshot -> findings), the Reconciler (findings -> de-duplicated
// alerts plus notification), the Service (single-flight reconciliation pass,
// alert queries and resolution), the Scheduler (periodic trigger), and the
// Store, Source and Notifier interfaces.
package deadline
