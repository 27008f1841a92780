package shared

// Permission names gating each module. Every mutating operation checks one of
// these before touching the store.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermClientsView = "clients.view"
	PermClientsEdit = "clients.edit"

	PermLandView = "land.view"
	PermLandEdit = "land.edit"

	PermSalesView    = "sales.view"
	PermSalesCreate  = "sales.create"
	PermSalesConfirm = "sales.confirm"
	PermSalesCancel  = "sales.cancel"
	PermSalesReset   = "sales.reset"

	PermFinanceReportView = "finance.report.view"
)

// AllScopes lists every permission the application knows about, used when
// seeding the permissions table.
func AllScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermClientsView,
		PermClientsEdit,
		PermLandView,
		PermLandEdit,
		PermSalesView,
		PermSalesCreate,
		PermSalesConfirm,
		PermSalesCancel,
		PermSalesReset,
		PermFinanceReportView,
	}
}
