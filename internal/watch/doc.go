// Package watch turns the Kubernetes "list, then watch" protocol into a
// single callback-driven event stream and builds state-confirmation waits
// on top of it.
//
// Run lists the current objects (delivered as synthetic Added events),
// then watches from the list's resource version. Bookmarks advance the
// resume cursor and are never delivered. Run does not reconnect: when the
// server closes the stream it returns ServerDisconnected together with the
// cursor, and the caller decides whether to resume with
// Options.ResourceVersion.
//
// Until runs Run with a predicate and a deadline. UntilDeleted,
// UntilConditionTrue, UntilPodReady and UntilEstablished are the
// confirmations used across kubeop; they differ only in the predicate.
package watch
