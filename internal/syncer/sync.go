package syncer

import "github.com/rediacc/desktop/internal/logger"

// Request describes one sync pass between two endpoints. Direction is
// purely which endpoint is the source: upload puts the local side there,
// download the remote side.
type Request struct {
	Source     Endpoint
	Dest       Endpoint
	Exclusions *ExclusionSet
	Mirror     bool
	Verify     bool
	DryRun     bool
	Workers    int
}

// PlanOnly lists both sides and computes the plan without executing it.
func PlanOnly(req Request) (*Plan, error) {
	source, err := req.Source.List(req.Exclusions)
	if err != nil {
		return nil, err
	}
	dest, err := req.Dest.List(req.Exclusions)
	if err != nil {
		return nil, err
	}
	return BuildPlan(source, dest,
		PlanOptions{Mirror: req.Mirror, Checksum: req.Verify},
		req.Source.Checksum, req.Dest.Checksum)
}

// Run plans and executes one sync pass.
func Run(req Request, log logger.Logger) (*Plan, *Report, error) {
	plan, err := PlanOnly(req)
	if err != nil {
		return nil, nil, err
	}
	report := NewExecutor(req.Source, req.Dest, log).Execute(plan, ExecOptions{
		DryRun:  req.DryRun,
		Verify:  req.Verify,
		Workers: req.Workers,
	})
	return plan, report, nil
}
