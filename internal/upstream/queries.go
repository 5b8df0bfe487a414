package upstream

// productFields is shared by the single and list queries so both map
// onto the same internal product shape.
const productFields = `
id
title
handle
vendor
productType
status
tags
createdAt
updatedAt`

const productQuery = `
query productByID($id: ID!) {
  product(id: $id) {` + productFields + `
  }
}`

const productsQuery = `
query products($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    edges {
      cursor
      node {` + productFields + `
      }
    }
    pageInfo {
      hasNextPage
    }
  }
}`
