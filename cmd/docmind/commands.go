package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kalambet/docmind/internal/auth"
	"github.com/kalambet/docmind/internal/config"
	"github.com/kalambet/docmind/internal/storage"
)

// docView is the subset of the document JSON the CLI prints.
type docView struct {
	ID         string    `json:"_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Summary    string    `json:"summary"`
	Tags       []string  `json:"tags"`
	AIStatus   string    `json:"aiStatus"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Similarity *float64  `json:"similarity"`
}

func formatDocumentLine(d docView) string {
	line := fmt.Sprintf("%s  %-9s  %s", d.ID, aiStatusLabel(d.AIStatus), d.Title)
	if d.Similarity != nil {
		line = fmt.Sprintf("%.3f  %s", *d.Similarity, line)
	}
	if len(d.Tags) > 0 {
		line += "  [" + strings.Join(d.Tags, ", ") + "]"
	}
	return line
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// documentFileBody reads path for upload. PDFs are sent as type "pdf",
// everything else as UTF-8 text.
func documentFileBody(path string) (kind, encoded string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading file: %w", err)
	}
	kind = "text"
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		kind = "pdf"
	}
	return kind, base64.StdEncoding.EncodeToString(data), nil
}

// --- doc ---

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Create, inspect and edit documents",
}

var docCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document",
	Long: `Create a document. Summary, tags and embedding are generated in the background.

Examples:
  docmind doc create --title "Roadmap" --content "Q3 goals..."
  docmind doc create --title "Contract" --file ./contract.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		content, _ := cmd.Flags().GetString("content")
		file, _ := cmd.Flags().GetString("file")

		if title == "" {
			return fmt.Errorf("--title is required")
		}
		if content == "" && file == "" {
			return fmt.Errorf("one of --content or --file is required")
		}

		req := map[string]any{"title": title}
		if file != "" {
			kind, encoded, err := documentFileBody(file)
			if err != nil {
				return err
			}
			req["type"] = kind
			req["file"] = encoded
		} else {
			req["content"] = content
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/document", req)
		if err != nil {
			return err
		}
		var d docView
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		printSuccess("Created document %s (AI status: %s)", d.ID, d.AIStatus)
		return nil
	},
}

var docListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		mine, _ := cmd.Flags().GetBool("mine")

		path := "/document"
		if mine {
			path = "/document/mine"
		}
		path += fmt.Sprintf("?page=%d&limit=%d", page, limit)

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var p struct {
			Page       int       `json:"page"`
			TotalDocs  int       `json:"totalDocs"`
			TotalPages int       `json:"totalPages"`
			Docs       []docView `json:"docs"`
		}
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		for _, d := range p.Docs {
			fmt.Println(formatDocumentLine(d))
		}
		printStatus("Page", "%d of %d (%d documents)", p.Page, p.TotalPages, p.TotalDocs)
		return nil
	},
}

var docShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd.Context(), "/document/"+url.PathEscape(args[0]))
	},
}

var docUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a document's title or content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			req["title"] = v
		}
		if cmd.Flags().Changed("content") {
			v, _ := cmd.Flags().GetString("content")
			req["content"] = v
		}
		if len(req) == 0 {
			return fmt.Errorf("nothing to update: pass --title and/or --content")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/document/"+url.PathEscape(args[0]), req)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Updated document %s", args[0])
		return nil
	},
}

var docDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document (its history is kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/document/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func regenerateCmd(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			resp, err := client.post(cmd.Context(), "/document/"+url.PathEscape(args[0])+"/"+action, nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, nil); err != nil {
				return err
			}
			printSuccess("Regeneration queued for %s", args[0])
			return nil
		},
	}
}

var docHistoryCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List saved versions of a document, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd.Context(), "/document/"+url.PathEscape(args[0])+"/history")
	},
}

var docShareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Add a member to a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/document/"+url.PathEscape(args[0])+"/add-member",
			map[string]string{"email": email, "role": role})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Added %s as %s", email, role)
		return nil
	},
}

func getAndPrint(ctx context.Context, path string) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.get(ctx, path)
	if err != nil {
		return err
	}
	var v any
	if err := decodeJSON(resp, &v); err != nil {
		return err
	}
	return printJSON(os.Stdout, v)
}

func init() {
	docCreateCmd.Flags().String("title", "", "document title")
	docCreateCmd.Flags().String("content", "", "document text")
	docCreateCmd.Flags().String("file", "", "text or PDF file to import")

	docListCmd.Flags().Int("page", 1, "page number")
	docListCmd.Flags().Int("limit", 10, "documents per page")
	docListCmd.Flags().Bool("mine", false, "only documents created by or shared with you")

	docUpdateCmd.Flags().String("title", "", "new title")
	docUpdateCmd.Flags().String("content", "", "new content")

	docShareCmd.Flags().String("email", "", "email of the user to add")
	docShareCmd.Flags().String("role", storage.MemberViewer, "member role: admin, editor or viewer")

	docCmd.AddCommand(docCreateCmd, docListCmd, docShowCmd, docUpdateCmd, docDeleteCmd, docHistoryCmd, docShareCmd)
	docCmd.AddCommand(regenerateCmd("summarize", "Regenerate a document's summary", "summarize"))
	docCmd.AddCommand(regenerateCmd("tags", "Regenerate a document's tags", "generate-tags"))
}

// --- search / ask / activity ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search documents by text or meaning",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/search/document",
			map[string]string{"query": strings.Join(args, " "), "type": mode})
		if err != nil {
			return err
		}
		var docs []docView
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}
		if len(docs) == 0 {
			printStatus("Results", "none")
			return nil
		}
		for _, d := range docs {
			fmt.Println(formatDocumentLine(d))
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the most relevant documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/qa", map[string]string{"question": strings.Join(args, " ")})
		if err != nil {
			return err
		}
		var ans struct {
			Answer  string    `json:"answer"`
			Context []docView `json:"context"`
		}
		if err := decodeJSON(resp, &ans); err != nil {
			return err
		}
		if ans.Answer == "" {
			printWarning("No completed documents to answer from")
			return nil
		}
		fmt.Println(ans.Answer)
		for _, d := range ans.Context {
			printStatus("Source", "%s", formatDocumentLine(d))
		}
		return nil
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity [doc-id]",
	Short: "Show the latest edits, globally or for one document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/document/activity/recent"
		if len(args) == 1 {
			path += "/" + url.PathEscape(args[0])
		}
		return getAndPrint(cmd.Context(), path)
	},
}

func init() {
	searchCmd.Flags().String("type", "semantic", "search mode: text or semantic")
}

// --- user / token (direct store access) ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users (writes directly to the local store)",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		role, _ := cmd.Flags().GetString("role")

		u, err := newUser(name, email, role)
		if err != nil {
			return err
		}
		store, _, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.CreateUser(u); err != nil {
			return fmt.Errorf("creating user: %w", err)
		}
		printSuccess("Created user %s <%s> (%s)", u.ID, u.Email, u.Role)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		limit, _ := cmd.Flags().GetInt("limit")

		store, _, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		users, err := store.SearchUsers(search, limit)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Printf("%s  %-6s  %s <%s>\n", u.ID, u.Role, u.Name, u.Email)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Print a signed token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		store, cfg, err := openLocalStore()
		if err != nil {
			return err
		}
		defer store.Close()

		u, err := store.GetUserByEmail(email)
		if err != nil {
			return fmt.Errorf("looking up %s: %w", email, err)
		}
		tok, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TTL()).Issue(u)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func newUser(name, email, role string) (storage.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return storage.User{}, fmt.Errorf("--name and --email are required")
	}
	if !strings.Contains(email, "@") {
		return storage.User{}, fmt.Errorf("invalid email %q", email)
	}
	if role != storage.RoleUser && role != storage.RoleAdmin {
		return storage.User{}, fmt.Errorf("invalid role %q: must be %s or %s", role, storage.RoleUser, storage.RoleAdmin)
	}
	return storage.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func openLocalStore() (*storage.Store, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, cfg, fmt.Errorf("opening storage: %w", err)
	}
	return store, cfg, nil
}

func init() {
	userCreateCmd.Flags().String("name", "", "display name")
	userCreateCmd.Flags().String("email", "", "email address")
	userCreateCmd.Flags().String("role", storage.RoleUser, "system role: user or admin")
	userListCmd.Flags().String("search", "", "email substring filter")
	userListCmd.Flags().Int("limit", 50, "maximum users to list")
	userCmd.AddCommand(userCreateCmd, userListCmd)

	tokenIssueCmd.Flags().String("email", "", "email of the user")
	tokenCmd.AddCommand(tokenIssueCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key>",
	Short: "Store a secret (" + strings.Join(config.SecretKeys(), ", ") + ") read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 4096))
		if err != nil {
			return fmt.Errorf("reading secret: %w", err)
		}
		value := strings.TrimSpace(string(data))
		if value == "" {
			return fmt.Errorf("empty secret")
		}
		if err := config.SetSecret(args[0], value); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetSecretCmd)
}
