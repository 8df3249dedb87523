package auth

// Permission constants define the available permissions in the system.
// These are used for role-based access control (RBAC) to restrict access
// to specific resources and actions.
const (
	// PermAdminAccess allows access to the administration APIs.
	PermAdminAccess = "admin.access"
	// PermUserManage allows reviewing registrations and managing user accounts.
	PermUserManage = "user.manage"

	// PermFileUpload allows uploading presentation and document files.
	PermFileUpload = "file.upload"
	// PermFileDownload allows downloading stored files and datasets.
	PermFileDownload = "file.download"

	// PermTranslationUse allows running the translation workflow.
	PermTranslationUse = "translation.use"
	// PermPDFAnnotate allows annotating PDF documents.
	PermPDFAnnotate = "pdf.annotate"
	// PermBatchProcess allows batch operations such as spreadsheet imports.
	PermBatchProcess = "batch.process"

	// PermGlossaryManage allows managing translation memory entries.
	PermGlossaryManage = "glossary.manage"
	// PermStopWordsManage allows managing personal stop word lists.
	PermStopWordsManage = "stopwords.manage"
	// PermIngredientSearch allows searching the ingredient reference data.
	PermIngredientSearch = "ingredient.search"

	// PermLogsView allows viewing and querying application log files.
	PermLogsView = "logs.view"
	// PermSSOLogin marks accounts allowed to sign in through an external identity provider.
	PermSSOLogin = "sso.login"
)
