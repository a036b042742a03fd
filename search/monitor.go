package search

import "github.com/poiesic/retrievit/core"

// SearchMonitor provides hooks to observe the retrieval pipeline.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterDenseSearch(namespace string, matches []core.RankedMatch)
	AfterSparseSearch(namespace string, matches []core.RankedMatch)
	AfterFusion(namespace string, candidates []core.Candidate)
	AfterRerank(namespace string, candidates []core.Candidate)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                   {}
func (n *noopMonitor) AfterDenseSearch(_ string, _ []core.RankedMatch)  {}
func (n *noopMonitor) AfterSparseSearch(_ string, _ []core.RankedMatch) {}
func (n *noopMonitor) AfterFusion(_ string, _ []core.Candidate)         {}
func (n *noopMonitor) AfterRerank(_ string, _ []core.Candidate)         {}
func (n *noopMonitor) Finish(_ *Result)                                 {}
