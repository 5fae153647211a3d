// Package repository holds the in-memory model of one generated source
// repository: the files a generation pass proposes, the merge strategies
// blueprint layers register for it, and the steps that run once its files
// have been reconciled on disk.
//
// A Repository is built by a single generation run and handed to the
// resynthesis orchestrator exactly once. It is not safe for concurrent use.
//
//	repo, err := repository.New("/work", "web app")
//	_ = repo.Track("src/index.ts", []byte("export {}\n"))
//	repo.AddStrategy(ownership.Strategy{
//	    Identifier: "protect_assets",
//	    Strategy:   "neverUpdate",
//	    Globs:      []string{"static-assets/**"},
//	})
package repository
