// Package browse ties filter state, the query cache and the catalog client
// together into the browsing workflow.
//
// A Collection owns the page and character stores and translates catalog
// outcomes into cache entries: a collection 404 becomes an empty page, an
// entity 404 stays an error. A Session is one display slot over the
// collection's pages. A Controller turns user intents into the next
// filter.State; the caller owns that state and passes it back in.
//
//	coll := browse.NewCollection(client, logger)
//	sess := browse.NewSession(coll)
//	ctrl := browse.NewController(sess)
//
//	state := filter.FromValues(location.Query())
//	view := sess.Show(state)
//	state = ctrl.SetName(state, "rick") // page resets to 1
//	view = sess.Show(state)             // page-1 data stays as placeholder
package browse
