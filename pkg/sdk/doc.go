// Package rci provides a Go client for the RCI component index HTTP API.
//
//	client := rci.New("http://localhost:8080", rci.WithAPIKey("secret"))
//	res, _ := client.Search(ctx, rci.SearchRequest{Query: "modal dialog"})
//	for i, c := range res.Components {
//	    fmt.Println(c.ComponentName, res.Scores[i])
//	}
package rci
