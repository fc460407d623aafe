// Package deduplication turns candidate titles into canonical page
// identifiers (slugs) and decides whether a new identifier overlaps too
// much with ones the factory has already produced.
//
// # Overview
//
// Exact slug collisions under-catch topically redundant titles: "is it
// normal to feel tired" and "is it normal to feel so tired" map to
// different slugs but would produce near-identical pages. The package
// therefore pairs Canonicalize with a token-set Jaccard score over the
// hyphen-delimited words of two slugs.
//
// # Configuration
//
// The threshold defaults to 0.55 and can be overridden with
// FACTORY_DEDUP_THRESHOLD. See DefaultConfig and ConfigFromEnv.
//
// # Usage
//
//	idx := deduplication.NewIndex(state.UsedIdentifiers, deduplication.DefaultConfig())
//	slug := deduplication.Canonicalize(title)
//	if d := idx.Check(slug); d.Skip {
//	    logger.Info("skipping title", zap.String("reason", string(d.Reason)))
//	}
package deduplication
