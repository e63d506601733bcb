package requisition

import (
	"encoding/json"
	"strconv"

	"github.com/juju/errors"
)

// Empty is the payload of requisitions that carry no data.
type Empty struct{}

// Dictionary is a free-form JSON object.
type Dictionary map[string]any

// StatusBarState selects how an UpdateStatusBarItem is applied.
type StatusBarState string

const (
	StatusBarShow    StatusBarState = "show"
	StatusBarHide    StatusBarState = "hide"
	StatusBarDispose StatusBarState = "dispose"
	StatusBarKeep    StatusBarState = "keep"
)

// StatusBarAlignment places a status bar item.
type StatusBarAlignment string

const (
	AlignLeft  StatusBarAlignment = "left"
	AlignRight StatusBarAlignment = "right"
)

// UpdateStatusBarItem creates, changes or removes a host status bar item.
// Nil Text and Tooltip leave the current values in place. Timeout is in
// milliseconds and only applies when the item is created.
type UpdateStatusBarItem struct {
	ID        string             `json:"id"`
	State     StatusBarState     `json:"state"`
	Text      *string            `json:"text,omitempty"`
	Alignment StatusBarAlignment `json:"alignment,omitempty"`
	Priority  int                `json:"priority,omitempty"`
	Tooltip   *string            `json:"tooltip,omitempty"`
	Timeout   int                `json:"timeout,omitempty"`
}

// StatusBarButtonClick reports a click on a status bar item.
type StatusBarButtonClick struct {
	Type string `json:"type"`
}

// ConnectionDetails describes a stored database connection.
type ConnectionDetails struct {
	ID          int        `json:"id"`
	DBType      string     `json:"dbType,omitempty"`
	Caption     string     `json:"caption,omitempty"`
	Description string     `json:"description,omitempty"`
	Options     Dictionary `json:"options,omitempty"`
}

// ConnectionEntry identifies a connection in a connection tree.
type ConnectionEntry struct {
	ID      int    `json:"id"`
	Caption string `json:"caption,omitempty"`
}

// ConnectionTabRequest opens or activates the tab of a connection.
type ConnectionTabRequest struct {
	Connection    ConnectionEntry `json:"connection"`
	Force         bool            `json:"force,omitempty"`
	InitialEditor string          `json:"initialEditor,omitempty"`
}

// ConnectionTabSelection activates the tab of a connection.
type ConnectionTabSelection struct {
	ConnectionID int    `json:"connectionId"`
	Caption      string `json:"caption,omitempty"`
	PageID       string `json:"pageId,omitempty"`
}

// NewConnectionRequest starts creating a connection.
type NewConnectionRequest struct {
	MdsData     Dictionary `json:"mdsData,omitempty"`
	ProfileName string     `json:"profileName,omitempty"`
}

// DocumentDetails describes an open document.
type DocumentDetails struct {
	ID                 string `json:"id"`
	Type               string `json:"type"`
	PageType           string `json:"pageType,omitempty"`
	Language           string `json:"language,omitempty"`
	Caption            string `json:"caption"`
	AlternativeCaption string `json:"alternativeCaption,omitempty"`
}

// DocumentOpenData is sent after a document was opened on a page.
type DocumentOpenData struct {
	PageID          string             `json:"pageId"`
	Connection      *ConnectionDetails `json:"connection,omitempty"`
	DocumentDetails DocumentDetails    `json:"documentDetails"`
}

// DocumentCloseData is sent before a document is closed.
type DocumentCloseData struct {
	PageID       string `json:"pageId"`
	ID           string `json:"id,omitempty"`
	ConnectionID int    `json:"connectionId,omitempty"`
}

// DocumentRef addresses a document of a connection.
type DocumentRef struct {
	ConnectionID int    `json:"connectionId,omitempty"`
	DocumentID   string `json:"documentId"`
	PageID       string `json:"pageId,omitempty"`
}

// ExecutionOptions controls how editor content is executed.
type ExecutionOptions struct {
	AtCaret              bool        `json:"atCaret,omitempty"`
	Advance              bool        `json:"advance,omitempty"`
	ForceSecondaryEngine bool        `json:"forceSecondaryEngine,omitempty"`
	AsText               bool        `json:"asText,omitempty"`
	Params               [][2]string `json:"params,omitempty"`
}

// ExtendedExecutionOptions executes a piece of code in a language.
type ExtendedExecutionOptions struct {
	ExecutionOptions
	Language string `json:"language"`
	Code     string `json:"code"`
	LinkID   int    `json:"linkId,omitempty"`
}

// CodeBlockExecution executes an embedded code block.
type CodeBlockExecution struct {
	LinkID       int         `json:"linkId"`
	ConnectionID int         `json:"connectionId"`
	Caption      string      `json:"caption"`
	Query        string      `json:"query"`
	Params       [][2]string `json:"params,omitempty"`
}

// CodeBlocksUpdate replaces the code of a linked block.
type CodeBlocksUpdate struct {
	LinkID int    `json:"linkId"`
	Code   string `json:"code"`
}

// ScriptRequest carries a script for an editor.
type ScriptRequest struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// SaveResult reports the result of saving an editor.
type SaveResult struct {
	ID      string `json:"id"`
	NewName string `json:"newName"`
	Saved   bool   `json:"saved"`
}

// CaretPosition is a 1-based editor position.
type CaretPosition struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// RunCommand runs an editor command.
type RunCommand struct {
	Command string `json:"command"`
}

// SelectStatement selects a statement of an execution context.
type SelectStatement struct {
	ContextID      string `json:"contextId"`
	StatementIndex int    `json:"statementIndex"`
}

// LoadNotebook loads notebook content.
type LoadNotebook struct {
	Content    string `json:"content"`
	Standalone bool   `json:"standalone,omitempty"`
}

// NewEditorRequest creates a script or notebook editor.
type NewEditorRequest struct {
	Page     string `json:"page,omitempty"`
	Language string `json:"language"`
	Content  string `json:"content,omitempty"`
}

// SetCurrentSchema changes the default schema of a connection.
type SetCurrentSchema struct {
	ID           string `json:"id"`
	ConnectionID int    `json:"connectionId"`
	Schema       string `json:"schema"`
}

// SQLPageRequest shows a page of a result set.
type SQLPageRequest struct {
	Context     Dictionary `json:"context,omitempty"`
	OldResultID string     `json:"oldResultId"`
	Page        int        `json:"page"`
	SQL         string     `json:"sql"`
}

// ColumnDetails adds column details to a result set.
type ColumnDetails struct {
	ResultID string       `json:"resultId"`
	Columns  []ColumnInfo `json:"columns"`
}

// ColumnInfo describes one result set column.
type ColumnInfo struct {
	InPK          bool `json:"inPK"`
	AutoIncrement bool `json:"autoIncrement"`
	Nullable      bool `json:"nullable"`
	Default       any  `json:"default,omitempty"`
}

// ShellSessionDetails describes a shell session.
type ShellSessionDetails struct {
	SessionID      string `json:"sessionId"`
	Caption        string `json:"caption,omitempty"`
	DBConnectionID int    `json:"dbConnectionId,omitempty"`
}

// ShellCommand asks the host to run a command on the shell backend. ID
// correlates the ShellReply messages that answer it.
type ShellCommand struct {
	ID      string     `json:"id"`
	Command string     `json:"command"`
	Args    Dictionary `json:"args,omitempty"`
}

// ShellReply is one backend response to a ShellCommand. Done is set on the
// last reply; State is PENDING, OK or ERROR.
type ShellReply struct {
	ID      string          `json:"id"`
	State   string          `json:"state"`
	Message string          `json:"message,omitempty"`
	Done    bool            `json:"done,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// ShellProfile is the active user profile of a web session.
type ShellProfile struct {
	ID          int        `json:"id"`
	UserID      int        `json:"userId"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Options     Dictionary `json:"options,omitempty"`
}

// WebSessionData is sent when the backend opened a web session.
type WebSessionData struct {
	SessionUUID   string       `json:"sessionUuid"`
	LocalUserMode bool         `json:"localUserMode"`
	ActiveProfile ShellProfile `json:"activeProfile"`
}

// ShellPromptValues updates the shell prompt.
type ShellPromptValues struct {
	PromptDescriptor Dictionary `json:"promptDescriptor,omitempty"`
}

// ProfileID is a profile identifier sent either as number or string.
type ProfileID string

// UnmarshalJSON accepts JSON numbers and strings.
func (p *ProfileID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = ProfileID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.NotValidf("profile id %s", data)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return errors.NotValidf("profile id %s", data)
	}
	*p = ProfileID(n.String())
	return nil
}

// ServicePasswordRequest asks the user for a service password.
type ServicePasswordRequest struct {
	RequestID   string     `json:"requestId"`
	Caption     string     `json:"caption,omitempty"`
	Description []string   `json:"description,omitempty"`
	Service     string     `json:"service"`
	User        string     `json:"user,omitempty"`
	Payload     Dictionary `json:"payload,omitempty"`
}

// PasswordData answers a ServicePasswordRequest.
type PasswordData struct {
	Request  ServicePasswordRequest `json:"request"`
	Password string                 `json:"password"`
}

// DialogRequest opens a dialog.
type DialogRequest struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title,omitempty"`
	Parameters Dictionary `json:"parameters,omitempty"`
	Values     Dictionary `json:"values,omitempty"`
	Data       Dictionary `json:"data,omitempty"`
}

// DialogResponse carries the result of a dialog.
type DialogResponse struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Closure string     `json:"closure"`
	Values  Dictionary `json:"values,omitempty"`
	Data    Dictionary `json:"data,omitempty"`
}

// OpenDialogOptions configures a file open dialog.
type OpenDialogOptions struct {
	ID               string              `json:"id,omitempty"`
	Default          string              `json:"default,omitempty"`
	OpenLabel        string              `json:"openLabel,omitempty"`
	CanSelectFiles   bool                `json:"canSelectFiles,omitempty"`
	CanSelectFolders bool                `json:"canSelectFolders,omitempty"`
	CanSelectMany    bool                `json:"canSelectMany,omitempty"`
	Filters          map[string][]string `json:"filters,omitempty"`
	Title            string              `json:"title,omitempty"`
}

// SaveDialogOptions configures a file save dialog.
type SaveDialogOptions struct {
	ID        string              `json:"id,omitempty"`
	Default   string              `json:"default,omitempty"`
	SaveLabel string              `json:"saveLabel,omitempty"`
	Filters   map[string][]string `json:"filters,omitempty"`
	Title     string              `json:"title,omitempty"`
}

// OpenFileDialogResult returns the selected paths.
type OpenFileDialogResult struct {
	ResourceID string   `json:"resourceId"`
	Path       []string `json:"path"`
}

// PageRequest navigates to a module page.
type PageRequest struct {
	Module        string `json:"module"`
	Page          string `json:"page"`
	Editor        string `json:"editor,omitempty"`
	SuppressAbout bool   `json:"suppressAbout,omitempty"`
}

// ThemeChangeData describes the active frontend theme.
type ThemeChangeData struct {
	ThemeName string            `json:"themeName"`
	ThemeType string            `json:"themeType,omitempty"`
	Colors    map[string]string `json:"colors,omitempty"`
}

// HostThemeData carries the host theme to the frontend.
type HostThemeData struct {
	CSS        string `json:"css"`
	ThemeClass string `json:"themeClass"`
	ThemeName  string `json:"themeName"`
	ThemeID    string `json:"themeId"`
}

// SettingEntry is a changed setting. A nil entry means "reload all".
type SettingEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SdkExportRequest exports a service SDK.
type SdkExportRequest struct {
	ServiceID         string             `json:"serviceId"`
	ConnectionID      int                `json:"connectionId"`
	ConnectionDetails *ConnectionDetails `json:"connectionDetails,omitempty"`
	Directory         string             `json:"directory,omitempty"`
}

// DebuggerData pairs a native shell request with its response.
type DebuggerData struct {
	Request  Dictionary `json:"request,omitempty"`
	Response Dictionary `json:"response,omitempty"`
}

// JobEntry is one step of a job.
type JobEntry struct {
	RequestType Name            `json:"requestType"`
	Parameter   json.RawMessage `json:"parameter,omitempty"`
}

// NewJobEntry builds a job step from a typed payload.
func NewJobEntry[P any](k Kind[P], payload P) (JobEntry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return JobEntry{}, errors.Annotatef(err, "encoding %q job entry", k.name)
	}
	return JobEntry{RequestType: k.name, Parameter: raw}, nil
}

// ProviderRef identifies the webview a proxied requisition came from.
type ProviderRef interface {
	ID() string
	Caption() string
}

// Original is the requisition wrapped by a ProxyRequest.
type Original struct {
	RequestType Name
	Parameter   any
}

// ProxyRequest re-posts a requisition that was not handled where it was
// raised. It never leaves the host.
type ProxyRequest struct {
	Provider ProviderRef
	Original Original
}
