// Command siterank analyzes the internal link authority of a crawled site.
package main

import "github.com/papapumpkin/siterank/cmd"

func main() {
	cmd.Execute()
}
