package requisition

// Application lifecycle.
var (
	ApplicationDidStart   = define[Empty]("applicationDidStart")
	ApplicationWillFinish = define[Empty]("applicationWillFinish")
	SocketStateChanged    = define[bool]("socketStateChanged")
	WebSessionStarted     = define[WebSessionData]("webSessionStarted")
	UserAuthenticated     = define[ShellProfile]("userAuthenticated")
	ProfileLoaded         = define[Empty]("profileLoaded")
	ChangeProfile         = define[ProfileID]("changeProfile")
	ConnectedToURL        = define[string]("connectedToUrl")
	CloseInstance         = define[Empty]("closeInstance")
)

// Status bar and theming.
var (
	StatusBarButtonClicked = define[StatusBarButtonClick]("statusBarButtonClick")
	UpdateStatusBar        = define[UpdateStatusBarItem]("updateStatusBarItem")
	ThemeChanged           = define[ThemeChangeData]("themeChanged")
	HostThemeChange        = define[HostThemeData]("hostThemeChange")
)

// File dialogs.
var (
	SelectFile     = define[OpenFileDialogResult]("selectFile")
	ShowOpenDialog = define[OpenDialogOptions]("showOpenDialog")
	ShowSaveDialog = define[SaveDialogOptions]("showSaveDialog")
	DBFileDropped  = define[string]("dbFileDropped")
)

// SQL result sets and transactions.
var (
	SQLShowDataAtPage     = define[SQLPageRequest]("sqlShowDataAtPage")
	SQLUpdateColumnInfo   = define[ColumnDetails]("sqlUpdateColumnInfo")
	SQLSetCurrentSchema   = define[SetCurrentSchema]("sqlSetCurrentSchema")
	SQLTransactionChanged = define[Empty]("sqlTransactionChanged")
	SQLTransactionEnded   = define[Empty]("sqlTransactionEnded")
)

// Editors.
var (
	EditorCaretMoved                 = define[CaretPosition]("editorCaretMoved")
	EditorExecuteSelectedOrAll       = define[ExecutionOptions]("editorExecuteSelectedOrAll")
	EditorExecute                    = define[ExecutionOptions]("editorExecute")
	EditorExecuteCurrent             = define[ExecutionOptions]("editorExecuteCurrent")
	EditorExecuteOnHost              = define[ExtendedExecutionOptions]("editorExecuteOnHost")
	EditorFind                       = define[Empty]("editorFind")
	EditorFormat                     = define[Empty]("editorFormat")
	EditorRunCommand                 = define[RunCommand]("editorRunCommand")
	EditorToggleStopExecutionOnError = define[bool]("editorToggleStopExecutionOnError")
	EditorStopExecution              = define[Empty]("editorStopExecution")
	EditorToggleAutoCommit           = define[Empty]("editorToggleAutoCommit")
	EditorExecuteExplain             = define[Empty]("editorExecuteExplain")
	EditorCommit                     = define[Empty]("editorCommit")
	EditorRollback                   = define[Empty]("editorRollback")
	EditorRunCode                    = define[ExtendedExecutionOptions]("editorRunCode")
	EditorRunScript                  = define[ScriptRequest]("editorRunScript")
	EditorEditScript                 = define[ScriptRequest]("editorEditScript")
	EditorLoadScript                 = define[ScriptRequest]("editorLoadScript")
	EditorSaveScript                 = define[ScriptRequest]("editorSaveScript")
	EditorRenameScript               = define[ScriptRequest]("editorRenameScript")
	EditorSaved                      = define[SaveResult]("editorSaved")
	EditorValidationDone             = define[string]("editorValidationDone")
	EditorSelectStatement            = define[SelectStatement]("editorSelectStatement")
	EditorSaveNotebook               = define[string]("editorSaveNotebook")
	EditorSaveNotebookInPlace        = define[string]("editorSaveNotebookInPlace")
	EditorLoadNotebook               = define[*LoadNotebook]("editorLoadNotebook")
	EditorContextStateChanged        = define[string]("editorContextStateChanged")
	EditorChanged                    = define[Empty]("editorChanged")
	EditorInsertText                 = define[string]("editorInsertText")
	CreateNewEditor                  = define[NewEditorRequest]("createNewEditor")
	CodeBlocksUpdated                = define[CodeBlocksUpdate]("codeBlocksUpdate")
	ExecuteCodeBlock                 = define[CodeBlockExecution]("executeCodeBlock")
)

// Documents and pages.
var (
	DocumentOpened  = define[DocumentOpenData]("documentOpened")
	DocumentClosed  = define[DocumentCloseData]("documentClosed")
	OpenDocument    = define[DocumentOpenData]("openDocument")
	CloseDocument   = define[DocumentRef]("closeDocument")
	SelectDocument  = define[DocumentRef]("selectDocument")
	ShowAbout       = define[Empty]("showAbout")
	ShowThemeEditor = define[Empty]("showThemeEditor")
	ShowPreferences = define[Empty]("showPreferences")
	ShowModule      = define[string]("showModule")
	ShowPage        = define[PageRequest]("showPage")
)

// Shell sessions.
var (
	SessionAdded      = define[ShellSessionDetails]("sessionAdded")
	SessionRemoved    = define[ShellSessionDetails]("sessionRemoved")
	OpenSession       = define[ShellSessionDetails]("openSession")
	RemoveSession     = define[ShellSessionDetails]("removeSession")
	NewSession        = define[ShellSessionDetails]("newSession")
	RefreshSessions   = define[[]ShellSessionDetails]("refreshSessions")
	UpdateShellPrompt = define[ShellPromptValues]("updateShellPrompt")
	ShellExecute      = define[ShellCommand]("shellExecute")
	ShellResponse     = define[ShellReply]("shellResponse")
)

// Connections.
var (
	OpenConnectionTab           = define[ConnectionTabRequest]("openConnectionTab")
	SelectConnectionTab         = define[ConnectionTabSelection]("selectConnectionTab")
	AddNewConnection            = define[NewConnectionRequest]("addNewConnection")
	RemoveConnection            = define[int]("removeConnection")
	EditConnection              = define[int]("editConnection")
	DuplicateConnection         = define[int]("duplicateConnection")
	ConnectionAdded             = define[ConnectionDetails]("connectionAdded")
	ConnectionUpdated           = define[ConnectionDetails]("connectionUpdated")
	ConnectionRemoved           = define[ConnectionDetails]("connectionRemoved")
	ConnectionItemDefaultAction = define[ConnectionEntry]("connectionItemDefaultAction")
	RefreshConnection           = define[*ConnectionEntry]("refreshConnection")
	ConnectionsUpdated          = define[Empty]("connectionsUpdated")
	RefreshOciTree              = define[Empty]("refreshOciTree")
)

// Passwords and authentication.
var (
	RequestPassword          = define[ServicePasswordRequest]("requestPassword")
	AcceptPassword           = define[PasswordData]("acceptPassword")
	CancelPassword           = define[ServicePasswordRequest]("cancelPassword")
	RequestMrsAuthentication = define[ServicePasswordRequest]("requestMrsAuthentication")
	AcceptMrsAuthentication  = define[PasswordData]("acceptMrsAuthentication")
	CancelMrsAuthentication  = define[ServicePasswordRequest]("cancelMrsAuthentication")
)

// MRS dialog requests. Their payloads pass through untouched.
var (
	RefreshMrsServiceSdk    = define[Empty]("refreshMrsServiceSdk")
	UpdateMrsRoot           = define[string]("updateMrsRoot")
	ShowMrsServiceDialog    = define[Dictionary]("showMrsServiceDialog")
	ShowMrsSchemaDialog     = define[Dictionary]("showMrsSchemaDialog")
	ShowMrsDbObjectDialog   = define[Dictionary]("showMrsDbObjectDialog")
	ShowMrsContentSetDialog = define[Dictionary]("showMrsContentSetDialog")
	ShowMrsAuthAppDialog    = define[Dictionary]("showMrsAuthAppDialog")
	ShowMrsUserDialog       = define[Dictionary]("showMrsUserDialog")
	ShowMrsSdkExportDialog  = define[SdkExportRequest]("showMrsSdkExportDialog")
	ShowLakehouseNavigator  = define[Empty]("showLakehouseNavigator")
	ShowChatOptions         = define[Empty]("showChatOptions")
)

// Dialogs, settings and notifications.
var (
	ShowDialog      = define[DialogRequest]("showDialog")
	DialogResponded = define[DialogResponse]("dialogResponse")
	SettingsChanged = define[*SettingEntry]("settingsChanged")
	ShowFatalError  = define[[]string]("showFatalError")
	ShowError       = define[string]("showError")
	ShowWarning     = define[string]("showWarning")
	ShowInfo        = define[string]("showInfo")
)

// Infrastructure.
var (
	Job      = define[[]JobEntry]("job")
	Message  = define[string]("message")
	Debugger = define[DebuggerData]("debugger")

	// Proxy wraps a requisition escalated from a webview to the host.
	Proxy = defineLocal[ProxyRequest]("proxyRequest")
)
