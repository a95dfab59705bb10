package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sourcing-hub/marketplace/internal/listing"
	"github.com/sourcing-hub/marketplace/internal/manufacturers"
)

type listFlags struct {
	search    string
	filters   map[string]*string
	yearMin   int
	yearMax   int
	volume    string
	sort      string
	dir       string
	page      int
	pageSize  int
	favorites bool
	watch     time.Duration
	maxPolls  int
}

// query renders the flags as list query parameters so the CLI shares the
// HTTP parsing rules.
func (f *listFlags) query() url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("search", f.search)
	for key, value := range f.filters {
		set(key, *value)
	}
	if f.yearMin > 0 {
		set("year_min", strconv.Itoa(f.yearMin))
	}
	if f.yearMax > 0 {
		set("year_max", strconv.Itoa(f.yearMax))
	}
	set("volume", f.volume)
	set("sort", f.sort)
	set("dir", f.dir)
	if f.page > 0 {
		set("page", strconv.Itoa(f.page))
	}
	if f.pageSize > 0 {
		set("page_size", strconv.Itoa(f.pageSize))
	}
	if f.favorites {
		set("favorites", "true")
	}
	return q
}

func newManufacturersCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "manufacturers",
		Aliases: []string{"mfr"},
		Short:   "Browse the manufacturer directory",
	}
	cmd.AddCommand(newManufacturersListCommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one manufacturer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			rec, err := e.service.Get(opts.context(cmd), args[0])
			if err != nil {
				return err
			}
			if opts.JSON {
				return opts.printJSON(cmd.OutOrStdout(), rec)
			}
			return writeRecords(cmd.OutOrStdout(), []listing.Record{rec})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "compare <id> <id>...",
		Short: "Compare up to four manufacturers side by side",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			recs, err := e.service.Compare(opts.context(cmd), args)
			if err != nil {
				return err
			}
			if opts.JSON {
				return opts.printJSON(cmd.OutOrStdout(), recs)
			}
			return writeRecords(cmd.OutOrStdout(), recs)
		},
	})
	return cmd
}

func newManufacturersListCommand(opts *Options) *cobra.Command {
	f := &listFlags{filters: map[string]*string{}}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List manufacturers with search, filters, sort and paging",
		Example: `  marketplacectl manufacturers list --industry Food --sort establish --dir desc
  marketplacectl manufacturers list --search "organic" --volume "1000-5000" --page 2
  marketplacectl manufacturers list --favorites --watch 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			q := f.query()
			c := listing.ParseQuery(q, listing.SortName)
			if q.Get("page_size") == "" {
				c.PageSize = e.service.PageSize()
			}
			view := func(ctx context.Context) (string, error) {
				dir, err := e.service.List(ctx, c, false)
				if err != nil {
					return "", err
				}
				var buf bytes.Buffer
				if err := opts.writeDirectory(&buf, dir); err != nil {
					return "", err
				}
				return buf.String(), nil
			}
			ctx := opts.context(cmd)
			if f.watch > 0 {
				return watchList(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), f.watch, f.maxPolls, view)
			}
			out, err := view(ctx)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.search, "search", "", "free-text search over name, description, category and location")
	for _, key := range []string{listing.FilterCategory, listing.FilterIndustry, listing.FilterLocation, listing.FilterCertification} {
		f.filters[key] = fl.String(key, "", "only "+key+" equal to this value")
	}
	fl.IntVar(&f.yearMin, "year-min", 0, "earliest establishment year")
	fl.IntVar(&f.yearMax, "year-max", 0, "latest establishment year")
	fl.StringVar(&f.volume, "volume", "", "production volume range, e.g. 1000-5000")
	fl.StringVar(&f.sort, "sort", "", "sort key: name, industry, location, establish")
	fl.StringVar(&f.dir, "dir", "", "sort direction: asc or desc")
	fl.IntVar(&f.page, "page", 0, "page number")
	fl.IntVar(&f.pageSize, "page-size", 0, "page size")
	fl.BoolVar(&f.favorites, "favorites", false, "only the caller's favorites")
	fl.DurationVar(&f.watch, "watch", 0, "poll upstream at this interval and re-render on change")
	fl.IntVar(&f.maxPolls, "max-polls", 0, "stop watching after this many polls (0 means until interrupted)")
	return cmd
}

func (o *Options) writeDirectory(w io.Writer, dir manufacturers.Directory) error {
	if o.JSON {
		return o.printJSON(w, dir)
	}
	if err := writeRecords(w, dir.Items); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d/%d, %d manufacturers, sorted by %s %s\n",
		dir.Page.Page, dir.TotalPages, dir.TotalItems, dir.Sort, dir.Dir)
	return err
}

func writeRecords(w io.Writer, recs []listing.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tINDUSTRY\tLOCATION\tESTABLISHED\tCERTIFICATIONS")
	for _, r := range recs {
		year := "-"
		if r.EstablishedYear > 0 {
			year = strconv.Itoa(r.EstablishedYear)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.Industry, r.Location, year, strings.Join(r.Certifications, ","))
	}
	return tw.Flush()
}
