// Package txn runs multi-step remote writes as a compensating transaction.
//
// The remote store offers no cross-table atomicity, so a write that touches
// several tables is staged as an ordered list of actions. Required actions
// must all succeed: the first failure rolls back the required actions that
// already ran, in reverse order, and aborts. Best-effort actions run after
// and never abort; their failures are collected on the Result so the caller
// can log the partial state.
//
//	tx := txn.New("unfavorite")
//	_ = tx.Add(txn.Func("delete favorite", deleteFavorite, nil))
//	_ = tx.AddBestEffort(txn.Func("delete collection items", deleteItems, nil))
//
//	res, err := tx.Commit(ctx)
//	if err != nil {
//	    // the favorite is still there
//	}
//	for _, f := range res.Failures {
//	    // items left behind
//	}
package txn
