package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"task-offload/internal/adapter"
	"task-offload/internal/dispatcher"
	"task-offload/pkg/processor/collection"
	"task-offload/pkg/processor/geometry"
	"task-offload/pkg/processor/text"
)

func (c *cli) splitCmd() *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "split [text]",
		Short: "Split text into words, lines or characters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(text.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewText(ctx, c.manager, opts)
			parts, err := a.SplitText(ctx, args[0], text.SplitMode(by))
			if err != nil {
				return err
			}
			return c.print(parts, func(w io.Writer) {
				for i, p := range parts {
					fmt.Fprintf(w, "%3d  %q\n", i, p)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&by, "by", "b", string(text.SplitWords), "Split mode: words, lines or characters")

	return cmd
}

func (c *cli) staggerCmd() *cobra.Command {
	var (
		from     string
		duration float64
	)

	cmd := &cobra.Command{
		Use:   "stagger [total]",
		Short: "Calculate stagger delays for a number of elements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid total: %w", err)
			}
			origin, err := parseStaggerFrom(from)
			if err != nil {
				return err
			}

			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(text.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewText(ctx, c.manager, opts)
			delays, err := a.StaggerDelays(ctx, total, origin, duration)
			if err != nil {
				return err
			}
			return c.print(delays, func(w io.Writer) {
				for i, d := range delays {
					fmt.Fprintf(w, "%3d  %.3fs\n", i, d)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "first", "Origin: first, last, center, random or an index")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0.1, "Delay between neighbouring elements in seconds")

	return cmd
}

func parseStaggerFrom(s string) (text.StaggerFrom, error) {
	if i, err := strconv.Atoi(s); err == nil {
		return text.FromIndex(i), nil
	}
	var f text.StaggerFrom
	if err := json.Unmarshal([]byte(strconv.Quote(s)), &f); err != nil {
		return f, err
	}
	return f, nil
}

func (c *cli) paginateCmd() *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "paginate [file]",
		Short: "Paginate a JSON array of records (stdin when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := c.readRecords(firstArg(args))
			if err != nil {
				return err
			}

			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(collection.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewCollection(ctx, c.manager, opts)
			result, err := a.Paginate(ctx, records, page, limit)
			if err != nil {
				return err
			}
			return c.print(result, func(w io.Writer) {
				p := result.Pagination
				for _, item := range result.Items {
					fmt.Fprintln(w, string(item))
				}
				fmt.Fprintf(w, "\nPage %d of %d (items %d-%d of %d)\n",
					p.CurrentPage, p.TotalPages, p.StartIndex, p.EndIndex, p.TotalItems)
			})
		},
	}

	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Records per page")

	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	var field string

	cmd := &cobra.Command{
		Use:   "categories [file]",
		Short: "Count the categories of a JSON array of records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := c.readRecords(firstArg(args))
			if err != nil {
				return err
			}

			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(collection.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewCollection(ctx, c.manager, opts)
			cats, err := a.Categories(ctx, records, field)
			if err != nil {
				return err
			}
			return c.print(cats, func(w io.Writer) {
				fmt.Fprintf(w, "%-24s  %s\n", "CATEGORY", "COUNT")
				for _, cat := range cats {
					fmt.Fprintf(w, "%-24s  %d\n", cat.Name, cat.Count)
				}
			})
		},
	}

	cmd.Flags().StringVar(&field, "field", "category", "Record field holding the category")

	return cmd
}

func (c *cli) distanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distance [lat1] [lng1] [lat2] [lng2]",
		Short: "Great-circle distance between two coordinates in kilometres",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v [4]float64
			for i, arg := range args {
				f, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid coordinate %q: %w", arg, err)
				}
				v[i] = f
			}

			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(geometry.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewGeometry(ctx, c.manager, opts)
			km, err := a.Distance(ctx, geometry.LatLng{Lat: v[0], Lng: v[1]}, geometry.LatLng{Lat: v[2], Lng: v[3]})
			if err != nil {
				return err
			}
			return c.print(map[string]float64{"distance": km}, func(w io.Writer) {
				fmt.Fprintf(w, "%.1f km\n", km)
			})
		},
	}
}

func (c *cli) framesCmd() *cobra.Command {
	var req geometry.FramesRequest

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Generate eased animation frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.opContext()
			defer cancel()

			opts, err := c.adapterOptions(geometry.ContextKey)
			if err != nil {
				return err
			}
			a := adapter.NewGeometry(ctx, c.manager, opts)
			frames, err := a.AnimationFrames(ctx, req)
			if err != nil {
				return err
			}
			return c.print(frames, func(w io.Writer) {
				fmt.Fprintf(w, "%-6s  %-10s  %s\n", "FRAME", "TIME (ms)", "PROGRESS")
				for _, f := range frames {
					fmt.Fprintf(w, "%-6d  %-10.1f  %.4f\n", f.Frame, f.Time, f.Progress)
				}
			})
		},
	}

	cmd.Flags().Float64Var(&req.Duration, "duration", 1000, "Animation duration in milliseconds")
	cmd.Flags().Float64Var(&req.FPS, "fps", geometry.DefaultFPS, "Frames per second")
	cmd.Flags().StringVar(&req.Easing, "easing", "linear", "Easing: linear, easeIn, easeOut, easeInOut, bounce or elastic")

	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Start the eager contexts and report their readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.opContext()
			defer cancel()

			failures := make(map[string]string)
			for _, key := range c.cfg.EagerContexts {
				entryPoint, err := c.cfg.EntryPointFor(key)
				if err == nil {
					err = c.manager.CreateContext(ctx, key, entryPoint)
				}
				if err != nil {
					failures[key] = err.Error()
				}
			}

			report := struct {
				Contexts map[string]bool       `json:"contexts"`
				Failures map[string]string     `json:"failures,omitempty"`
				Cache    dispatcher.CacheStats `json:"cache"`
				Pending  int                   `json:"pending"`
			}{
				Contexts: c.manager.ContextStatus(),
				Failures: failures,
				Cache:    c.manager.CacheStats(),
				Pending:  c.manager.PendingCount(""),
			}

			return c.print(report, func(w io.Writer) {
				keys := make([]string, 0, len(report.Contexts))
				for k := range report.Contexts {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				fmt.Fprintf(w, "%-24s  %s\n", "CONTEXT", "READY")
				for _, k := range keys {
					fmt.Fprintf(w, "%-24s  %t\n", k, report.Contexts[k])
				}
				for k, msg := range report.Failures {
					fmt.Fprintf(w, "%-24s  failed: %s\n", k, strings.TrimSpace(msg))
				}
				fmt.Fprintf(w, "\nCache: %d/%d  Pending: %d\n", report.Cache.Size, report.Cache.MaxSize, report.Pending)
			})
		},
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
