// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"

	"github.com/go-a2a/jokeagent/a2a"
	"github.com/go-a2a/jokeagent/client"
)

const defaultAgentURL = "http://localhost:10000/"

func newAskCommand() *cobra.Command {
	var (
		url       string
		stream    bool
		contextID string
		taskID    string
		token     string
	)
	cmd := &cobra.Command{
		Use:   "ask QUESTION...",
		Short: "Ask a running joke agent for a joke",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts := []client.ClientOption{client.WithUserAgent("jokeagent-cli")}
			if token != "" {
				opts = append(opts, client.WithInterceptors(client.BearerTokenInterceptor(token)))
			}
			c := client.NewClient(url, opts...)
			params := &a2a.MessageSendParams{
				Message: a2a.NewUserTextMessage(strings.Join(args, " "), contextID, taskID),
			}

			out := cmd.OutOrStdout()
			if !stream {
				ev, err := c.SendMessage(ctx, params)
				if err != nil {
					return err
				}
				printEvent(out, ev)
				return nil
			}
			for ev, err := range c.SendMessageStream(ctx, params) {
				if err != nil {
					return err
				}
				printEvent(out, ev)
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&url, "url", defaultAgentURL, "agent JSON-RPC endpoint")
	fs.BoolVarP(&stream, "stream", "s", false, "print task events as they happen")
	fs.StringVar(&contextID, "context-id", "", "continue the conversation with this context id")
	fs.StringVar(&taskID, "task-id", "", "answer a task waiting for input")
	fs.StringVar(&token, "token", "", "bearer token sent to the agent")
	return cmd
}

func newCardCommand() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Print the agent card of a running agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			card, err := client.NewCardResolver(url, nil).GetAgentCard(cmd.Context(), "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := json.MarshalWrite(out, card, jsontext.WithIndent("  ")); err != nil {
				return err
			}
			_, err = fmt.Fprintln(out)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", defaultAgentURL, "agent base URL")
	return cmd
}

// printEvent writes a one line summary of ev, plus any artifact text.
func printEvent(w io.Writer, ev a2a.Event) {
	switch e := ev.(type) {
	case *a2a.Task:
		fmt.Fprintf(w, "task %s (context %s): %s\n", e.ID, e.ContextID, e.Status.State)
		if text := a2a.GetMessageText(e.Status.Message, ""); text != "" {
			fmt.Fprintf(w, "  %s\n", text)
		}
		for _, art := range e.Artifacts {
			fmt.Fprintf(w, "%s: %s\n", art.Name, a2a.GetTextParts(art.Parts, ""))
		}
	case *a2a.TaskStatusUpdateEvent:
		fmt.Fprintf(w, "[%s] %s\n", e.Status.State, a2a.GetMessageText(e.Status.Message, ""))
	case *a2a.TaskArtifactUpdateEvent:
		if e.Artifact != nil {
			fmt.Fprintf(w, "%s: %s\n", e.Artifact.Name, a2a.GetTextParts(e.Artifact.Parts, ""))
		}
	case *a2a.Message:
		fmt.Fprintln(w, a2a.GetMessageText(e, ""))
	}
}
