package scenario

// DefaultScenarioID is the canonical tour started when none is requested.
const DefaultScenarioID = "rfp_overview"

// Builtin returns the tours shipped with the binary.
func Builtin() []*Scenario {
	return []*Scenario{
		{
			ID:   DefaultScenarioID,
			Name: "RFP lifecycle overview",
			Steps: []Step{
				{ID: "buyer-dashboard", Role: RoleBuyer, Action: ActionNavigate, Route: "/dashboard", DurationMs: 2000,
					Title: "Buyer dashboard"},
				{ID: "buyer-metrics", Role: RoleBuyer, Action: ActionHighlight, TargetSelector: "[data-demo='dashboard-metrics']",
					Title: "Live RFP metrics", Description: "Open, closing and awarded RFPs at a glance."},
				{ID: "buyer-new-rfp", Role: RoleBuyer, Action: ActionClick, TargetSelector: "[data-demo='new-rfp']",
					Title: "Create an RFP"},
				{ID: "buyer-rfp-title", Role: RoleBuyer, Action: ActionType, TargetSelector: "input[name='title']", Text: "Office Furniture 2025",
					DurationMs: 3500, Title: "Name the request"},
				{ID: "buyer-rfp-deadline", Role: RoleBuyer, Action: ActionScrollIntoView, TargetSelector: "[data-demo='rfp-deadline']",
					Title: "Set a response deadline"},
				{ID: "supplier-inbox", Role: RoleSupplier, Action: ActionNavigate, Route: "/supplier/rfps", DurationMs: 2000,
					Title: "Supplier inbox"},
				{ID: "supplier-invite", Role: RoleSupplier, Action: ActionHighlight, TargetSelector: "[data-demo='rfp-invite']",
					Title: "Invitation received"},
				{ID: "supplier-respond", Role: RoleSupplier, Action: ActionClick, TargetSelector: "[data-demo='respond']",
					Title: "Start a response"},
				{ID: "supplier-pricing", Role: RoleSupplier, Action: ActionType, TargetSelector: "textarea[name='proposal']",
					Text: "We can deliver within 30 days.", DurationMs: 4000, Title: "Draft the proposal"},
				{ID: "buyer-compare", Role: RoleBuyer, Action: ActionNavigate, Route: "/rfps/compare", DurationMs: 2000,
					Title: "Compare responses"},
				{ID: "buyer-award", Role: RoleBuyer, Action: ActionHighlight, TargetSelector: "[data-demo='award']",
					Title: "Award the contract"},
			},
		},
		{
			ID:   "tour_basic",
			Name: "Basic tour",
			Steps: []Step{
				{ID: "s1", Action: ActionNavigate, Route: "/a"},
				{ID: "s2", Action: ActionHighlight, TargetSelector: "#x"},
				{ID: "s3", Action: ActionClick, TargetSelector: "#y"},
			},
		},
	}
}
